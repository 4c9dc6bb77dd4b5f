package ytdl

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// MockHTTPClient is a mock HTTP client for testing
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)

	mu   sync.Mutex
	urls []string
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.urls = append(m.urls, req.URL.String())
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return NewMockBinaryResponse(nil), nil
}

func (m *MockHTTPClient) Requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

const sumsURL = "http://example.com/SHA2-256SUMS"

// releaseThenBinary answers the release API with tag, lists the checksum of
// data in the sums file and serves data for the asset download
func releaseThenBinary(tag, asset string, data []byte) *MockHTTPClient {
	sum := sha256.Sum256(data)
	return releaseWithSums(tag, asset, data, hex.EncodeToString(sum[:])+"  "+asset+"\n")
}

func releaseWithSums(tag, asset string, data []byte, sums string) *MockHTTPClient {
	return &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			switch req.URL.String() {
			case ytdlpReleaseAPI:
				return NewMockReleaseResponse(tag, asset), nil
			case sumsURL:
				return NewMockBinaryResponse([]byte(sums)), nil
			default:
				return NewMockBinaryResponse(data), nil
			}
		},
	}
}

// NewMockReleaseResponse creates a mock GitHub release response
func NewMockReleaseResponse(tagName string, assetName string) *http.Response {
	release := GitHubRelease{
		TagName: tagName,
		Assets: []ReleaseAsset{
			{Name: "SHA2-256SUMS", BrowserDownloadURL: sumsURL},
			{Name: assetName, BrowserDownloadURL: "http://example.com/" + assetName},
		},
	}

	body, _ := json.Marshal(release)

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// NewMockBinaryResponse creates a mock binary download response
func NewMockBinaryResponse(data []byte) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(data)),
	}
}
