package models

// Tier is a named quality bucket offered to clients
type Tier string

const (
	Tier2160p Tier = "2160p"
	Tier1440p Tier = "1440p"
	Tier1080p Tier = "1080p"
	Tier720p  Tier = "720p"
	Tier480p  Tier = "480p"
	TierAudio Tier = "audio"
)

// UnrankedTier is the rank of any tier outside the fixed menu
const UnrankedTier = 999

var tierRank = map[Tier]int{
	Tier2160p: 0,
	Tier1440p: 1,
	Tier1080p: 2,
	Tier720p:  3,
	Tier480p:  4,
	TierAudio: 5,
}

// Rank returns the tier's position in the menu (lower is preferred)
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return UnrankedTier
}

func (t Tier) String() string {
	return string(t)
}

// codecNone is the engine's sentinel for an absent stream
const codecNone = "none"

// FormatDescriptor is one fetchable stream variant reported by the engine
type FormatDescriptor struct {
	FormatID     string  `json:"formatId"`
	VideoCodec   string  `json:"videoCodec"`
	AudioCodec   string  `json:"audioCodec"`
	Height       int     `json:"height"`
	Bitrate      float64 `json:"bitrate"`
	AudioBitrate float64 `json:"audioBitrate"`
	Extension    string  `json:"extension"`
	FileSize     *int64  `json:"fileSize,omitempty"`
	Note         string  `json:"note,omitempty"`
}

// HasVideo reports whether the descriptor carries a video stream. Only the
// "none" sentinel marks a stream absent; an unknown codec counts as present.
func (f FormatDescriptor) HasVideo() bool {
	return f.VideoCodec != codecNone
}

// HasAudio reports whether the descriptor carries an audio stream
func (f FormatDescriptor) HasAudio() bool {
	return f.AudioCodec != codecNone
}

// IsAudioOnly reports an audio stream without video
func (f FormatDescriptor) IsAudioOnly() bool {
	return f.HasAudio() && !f.HasVideo()
}

// IsMuxed reports a stream with both video and audio
func (f FormatDescriptor) IsMuxed() bool {
	return f.HasAudio() && f.HasVideo()
}

// SelectedFormat is the representative descriptor surfaced for a tier
type SelectedFormat struct {
	FormatID   string  `json:"formatId"`
	Extension  string  `json:"extension"`
	Tier       Tier    `json:"tier"`
	Height     int     `json:"height,omitempty"`
	Note       string  `json:"note,omitempty"`
	FileSize   *int64  `json:"fileSize,omitempty"`
	Bitrate    float64 `json:"bitrate,omitempty"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
}

// VideoMetadata is the normalized view of a source URL
type VideoMetadata struct {
	Title      string           `json:"title"`
	Thumbnail  string           `json:"thumbnail"`
	Duration   *float64         `json:"duration,omitempty"`
	SourceURL  string           `json:"sourceUrl"`
	WebpageURL string           `json:"webpageUrl,omitempty"`
	Extractor  string           `json:"extractor,omitempty"`
	Formats    []SelectedFormat `json:"formats"`

	// Descriptors is the raw engine list, kept so downloads can resolve a
	// format without probing again.
	Descriptors []FormatDescriptor `json:"descriptors,omitempty"`
}

// Tiers lists the tiers present in Formats, in menu order
func (m *VideoMetadata) Tiers() []Tier {
	tiers := make([]Tier, 0, len(m.Formats))
	for _, f := range m.Formats {
		tiers = append(tiers, f.Tier)
	}
	return tiers
}

// DownloadResult references a finished download
type DownloadResult struct {
	FileName     string `json:"fileName"`
	DownloadPath string `json:"downloadPath"`
	Tier         Tier   `json:"tier"`
	FormatID     string `json:"formatId,omitempty"`
}
