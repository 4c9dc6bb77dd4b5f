package format

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"vidfetch/pkg/models"
)

// Policy decides which descriptor represents a tier when several qualify
type Policy string

const (
	// PolicyFirstSeen keeps the first descriptor encountered for each tier
	PolicyFirstSeen Policy = "first"
	// PolicyBestBitrate keeps the highest-bitrate descriptor for each tier
	PolicyBestBitrate Policy = "best"
)

var ErrUnknownPolicy = errors.New("unknown tier policy")

// ParsePolicy validates a policy name. An empty name means PolicyFirstSeen.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirstSeen:
		return PolicyFirstSeen, nil
	case PolicyBestBitrate:
		return PolicyBestBitrate, nil
	default:
		return "", ErrUnknownPolicy
	}
}

var heightTiers = []struct {
	min  int
	tier models.Tier
}{
	{2160, models.Tier2160p},
	{1440, models.Tier1440p},
	{1080, models.Tier1080p},
	{720, models.Tier720p},
	{480, models.Tier480p},
}

// TierForHeight buckets a pixel height. Heights below 480 have no tier.
func TierForHeight(height int) (models.Tier, bool) {
	for _, ht := range heightTiers {
		if height >= ht.min {
			return ht.tier, true
		}
	}
	return "", false
}

// ParseTier checks that s is "audio" or "<integer>p" and returns the target
// height (0 for audio).
func ParseTier(s string) (models.Tier, int, error) {
	if s == string(models.TierAudio) {
		return models.TierAudio, 0, nil
	}
	digits, ok := strings.CutSuffix(s, "p")
	if !ok || digits == "" {
		return "", 0, &models.ValidationError{Field: "quality", Message: "must be \"audio\" or \"<height>p\""}
	}
	height, err := strconv.Atoi(digits)
	if err != nil || height <= 0 {
		return "", 0, &models.ValidationError{Field: "quality", Message: "must be \"audio\" or \"<height>p\""}
	}
	return models.Tier(s), height, nil
}

// SelectBest picks the descriptor that best satisfies the requested tier.
//
// Audio takes the audio-only stream with the highest audio bitrate. A video
// tier takes, among muxed streams whose height equals the target exactly, the
// one with the highest total bitrate. Ties keep the earliest descriptor.
func SelectBest(descriptors []models.FormatDescriptor, requested string) (models.FormatDescriptor, bool, error) {
	tier, height, err := ParseTier(requested)
	if err != nil {
		return models.FormatDescriptor{}, false, err
	}

	var (
		best  models.FormatDescriptor
		found bool
	)
	for _, d := range descriptors {
		var metric, bestMetric float64
		if tier == models.TierAudio {
			if !d.IsAudioOnly() {
				continue
			}
			metric, bestMetric = d.AudioBitrate, best.AudioBitrate
		} else {
			if !d.IsMuxed() || d.Height != height {
				continue
			}
			metric, bestMetric = d.Bitrate, best.Bitrate
		}
		if !found || metric > bestMetric {
			best, found = d, true
		}
	}
	return best, found, nil
}

// AvailableTiers re-buckets every descriptor into the tiers it could serve,
// ordered by ascending height with audio last.
func AvailableTiers(descriptors []models.FormatDescriptor) []models.Tier {
	seen := make(map[models.Tier]bool)
	for _, d := range descriptors {
		switch {
		case d.IsMuxed():
			if t, ok := TierForHeight(d.Height); ok {
				seen[t] = true
			}
		case d.IsAudioOnly():
			seen[models.TierAudio] = true
		}
	}

	tiers := make([]models.Tier, 0, len(seen))
	for t := range seen {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool {
		return availableOrder(tiers[i]) < availableOrder(tiers[j])
	})
	return tiers
}

// availableOrder ranks 480p first, 2160p last among heights, then audio
func availableOrder(t models.Tier) int {
	for i, ht := range heightTiers {
		if ht.tier == t {
			return len(heightTiers) - 1 - i
		}
	}
	return len(heightTiers)
}

// Normalize reduces a raw descriptor list to one representative per tier,
// sorted by tier rank.
func Normalize(descriptors []models.FormatDescriptor, policy Policy) []models.SelectedFormat {
	formats := make([]models.SelectedFormat, 0, len(heightTiers)+1)

	if audio, ok, _ := SelectBest(descriptors, string(models.TierAudio)); ok {
		sf := toSelected(audio, models.TierAudio)
		sf.Note = "audio only"
		formats = append(formats, sf)
	}

	byTier := make(map[models.Tier]int)
	for _, d := range descriptors {
		// muted video is never offered
		if !d.IsMuxed() {
			continue
		}
		tier, ok := TierForHeight(d.Height)
		if !ok {
			continue
		}
		idx, seen := byTier[tier]
		if !seen {
			byTier[tier] = len(formats)
			formats = append(formats, toSelected(d, tier))
			continue
		}
		if policy == PolicyBestBitrate && d.Bitrate > formats[idx].Bitrate {
			formats[idx] = toSelected(d, tier)
		}
	}

	sort.SliceStable(formats, func(i, j int) bool {
		return formats[i].Tier.Rank() < formats[j].Tier.Rank()
	})
	return formats
}

func toSelected(d models.FormatDescriptor, tier models.Tier) models.SelectedFormat {
	sf := models.SelectedFormat{
		FormatID:   d.FormatID,
		Extension:  d.Extension,
		Tier:       tier,
		Note:       d.Note,
		FileSize:   d.FileSize,
		Bitrate:    d.Bitrate,
		AudioCodec: d.AudioCodec,
	}
	if tier != models.TierAudio {
		sf.Height = d.Height
		sf.VideoCodec = d.VideoCodec
	}
	return sf
}
