package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const defaultServer = "http://127.0.0.1:5000"

var (
	ErrNoURL       = errors.New("no URL found in arguments")
	ErrServerError = errors.New("server returned error")
)

type options struct {
	server  string
	quality string
	output  string
	url     string
}

type format struct {
	FormatID  string `json:"formatId"`
	Extension string `json:"extension"`
	Tier      string `json:"tier"`
	Note      string `json:"note"`
}

type videoInfo struct {
	Title   string   `json:"title"`
	Formats []format `json:"formats"`
}

type downloadResult struct {
	Success      bool   `json:"success"`
	DownloadPath string `json:"downloadPath"`
}

var client = &http.Client{Timeout: 30 * time.Minute}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the client and returns the exit code
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if opts.quality == "" {
		info, err := fetchInfo(opts)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, info.Title)
		for _, f := range info.Formats {
			fmt.Fprintf(stdout, "%-6s %-10s %-5s %s\n", f.Tier, f.FormatID, f.Extension, f.Note)
		}
		return 0
	}

	fileURL, err := requestDownload(opts)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if opts.output != "" {
		if err := saveFile(fileURL, opts.output); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, opts.output)
		return 0
	}

	fmt.Fprintln(stdout, fileURL)
	return 0
}

func parseArgs(args []string) (*options, error) {
	fs := pflag.NewFlagSet("vidfetch-client", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &options{}
	fs.StringVarP(&opts.server, "server", "s", defaultServer, "vidfetch server base URL")
	fs.StringVarP(&opts.quality, "quality", "q", "", "Quality to download (e.g. 1080p, audio); empty lists formats")
	fs.StringVarP(&opts.output, "output", "o", "", "Save the downloaded file to this path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, arg := range fs.Args() {
		if strings.HasPrefix(strings.ToLower(arg), "http") {
			opts.url = arg
			break
		}
	}
	if opts.url == "" {
		return nil, ErrNoURL
	}

	opts.server = strings.TrimRight(opts.server, "/")
	return opts, nil
}

func fetchInfo(opts *options) (*videoInfo, error) {
	var info videoInfo
	if err := postJSON(opts.server+"/api/video-info", map[string]string{"url": opts.url}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// requestDownload asks the server to fetch the video and returns the file URL
func requestDownload(opts *options) (string, error) {
	var result downloadResult
	body := map[string]string{"url": opts.url, "quality": opts.quality}
	if err := postJSON(opts.server+"/api/download", body, &result); err != nil {
		return "", err
	}
	if !result.Success || result.DownloadPath == "" {
		return "", fmt.Errorf("%w: empty download path", ErrServerError)
	}
	return opts.server + result.DownloadPath, nil
}

func postJSON(url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("connection refused - is vidfetch running? %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w: %s", ErrServerError, e.Error)
		}
		return fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}

	return json.Unmarshal(data, out)
}

func saveFile(url, path string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return out.Close()
}
