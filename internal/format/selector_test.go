package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidfetch/pkg/models"
)

func muxed(id string, height int, tbr float64) models.FormatDescriptor {
	return models.FormatDescriptor{
		FormatID:   id,
		VideoCodec: "avc1.640028",
		AudioCodec: "mp4a.40.2",
		Height:     height,
		Bitrate:    tbr,
		Extension:  "mp4",
	}
}

func videoOnly(id string, height int, tbr float64) models.FormatDescriptor {
	return models.FormatDescriptor{
		FormatID:   id,
		VideoCodec: "vp9",
		AudioCodec: "none",
		Height:     height,
		Bitrate:    tbr,
		Extension:  "webm",
	}
}

func audioOnly(id string, abr float64) models.FormatDescriptor {
	return models.FormatDescriptor{
		FormatID:     id,
		VideoCodec:   "none",
		AudioCodec:   "opus",
		AudioBitrate: abr,
		Bitrate:      abr,
		Extension:    "webm",
	}
}

func TestTierForHeight(t *testing.T) {
	tests := []struct {
		height   int
		wantTier models.Tier
		wantOK   bool
	}{
		{4320, models.Tier2160p, true},
		{2160, models.Tier2160p, true},
		{2159, models.Tier1440p, true},
		{1440, models.Tier1440p, true},
		{1080, models.Tier1080p, true},
		{1079, models.Tier720p, true},
		{720, models.Tier720p, true},
		{480, models.Tier480p, true},
		{479, "", false},
		{0, "", false},
	}

	for _, tt := range tests {
		tier, ok := TierForHeight(tt.height)
		assert.Equal(t, tt.wantOK, ok, "height %d", tt.height)
		assert.Equal(t, tt.wantTier, tier, "height %d", tt.height)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in         string
		wantHeight int
		wantErr    bool
	}{
		{"audio", 0, false},
		{"1080p", 1080, false},
		{"360p", 360, false},
		{"1080", 0, true},
		{"p", 0, true},
		{"abcp", 0, true},
		{"-720p", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, height, err := ParseTier(tt.in)
			if tt.wantErr {
				var ve *models.ValidationError
				assert.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeight, height)
		})
	}
}

func TestSelectBest(t *testing.T) {
	descriptors := []models.FormatDescriptor{
		audioOnly("140", 128),
		muxed("18", 360, 500),
		muxed("22a", 720, 1500),
		videoOnly("247", 720, 9000),
		muxed("22b", 720, 2500),
		audioOnly("251", 160),
		muxed("37", 1080, 4000),
	}

	tests := []struct {
		name      string
		quality   string
		wantID    string
		wantFound bool
	}{
		{"audio picks max abr", "audio", "251", true},
		{"video picks max tbr among muxed", "720p", "22b", true},
		{"exact height only", "1080p", "37", true},
		{"no nearest fallback", "1440p", "", false},
		{"low heights still match exactly", "360p", "18", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := SelectBest(descriptors, tt.quality)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantID, got.FormatID)
		})
	}
}

func TestSelectBestTieKeepsFirst(t *testing.T) {
	descriptors := []models.FormatDescriptor{
		muxed("first", 1080, 3000),
		muxed("second", 1080, 3000),
		audioOnly("a1", 0),
		audioOnly("a2", 0),
	}

	got, found, err := SelectBest(descriptors, "1080p")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", got.FormatID)

	got, found, err = SelectBest(descriptors, "audio")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a1", got.FormatID)
}

func TestSelectBestIgnoresMutedVideo(t *testing.T) {
	descriptors := []models.FormatDescriptor{videoOnly("137", 1080, 5000)}

	_, found, err := SelectBest(descriptors, "1080p")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSelectBestInvalidQuality(t *testing.T) {
	_, _, err := SelectBest(nil, "hd")
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAvailableTiers(t *testing.T) {
	descriptors := []models.FormatDescriptor{
		muxed("37", 1080, 4000),
		muxed("18", 360, 500),
		videoOnly("313", 2160, 20000),
		muxed("35", 480, 800),
		audioOnly("140", 128),
		muxed("38", 1080, 4500),
	}

	got := AvailableTiers(descriptors)
	assert.Equal(t, []models.Tier{models.Tier480p, models.Tier1080p, models.TierAudio}, got)
}

func TestNormalize(t *testing.T) {
	descriptors := []models.FormatDescriptor{
		muxed("35", 480, 800),
		audioOnly("140", 128),
		muxed("313", 2160, 20000),
		muxed("18", 360, 500),
		videoOnly("137", 1440, 9000),
		muxed("37a", 1080, 3000),
		muxed("37b", 1200, 5000),
		audioOnly("251", 160),
	}

	formats := Normalize(descriptors, PolicyFirstSeen)

	tiers := make([]models.Tier, 0, len(formats))
	for _, f := range formats {
		tiers = append(tiers, f.Tier)
	}
	assert.Equal(t, []models.Tier{models.Tier2160p, models.Tier1080p, models.Tier480p, models.TierAudio}, tiers)
	assert.Equal(t, "37a", formats[1].FormatID, "first-seen descriptor represents the tier")
	assert.Equal(t, "251", formats[3].FormatID)
	assert.Equal(t, "audio only", formats[3].Note)
	assert.Empty(t, formats[3].VideoCodec)
}

func TestNormalizeBestBitrate(t *testing.T) {
	descriptors := []models.FormatDescriptor{
		muxed("37a", 1080, 3000),
		muxed("37b", 1200, 5000),
		muxed("37c", 1080, 4000),
	}

	formats := Normalize(descriptors, PolicyBestBitrate)
	require.Len(t, formats, 1)
	assert.Equal(t, "37b", formats[0].FormatID)
}

func TestUnknownCodecsCountAsMuxed(t *testing.T) {
	descriptors := []models.FormatDescriptor{
		{FormatID: "http-720", Height: 720, Bitrate: 1500, Extension: "mp4"},
		{FormatID: "http-1080", Height: 1080, Bitrate: 3000, Extension: "mp4"},
	}

	formats := Normalize(descriptors, PolicyFirstSeen)
	require.Len(t, formats, 2)
	assert.Equal(t, models.Tier1080p, formats[0].Tier)
	assert.Equal(t, models.Tier720p, formats[1].Tier)

	got, ok, err := SelectBest(descriptors, "720p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http-720", got.FormatID)

	assert.Equal(t, []models.Tier{models.Tier720p, models.Tier1080p}, AvailableTiers(descriptors))

	_, ok, err = SelectBest(descriptors, "audio")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalizeEmpty(t *testing.T) {
	formats := Normalize(nil, PolicyFirstSeen)
	assert.NotNil(t, formats)
	assert.Empty(t, formats)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstSeen, p)

	p, err = ParsePolicy("BEST")
	require.NoError(t, err)
	assert.Equal(t, PolicyBestBitrate, p)

	_, err = ParsePolicy("loudest")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
