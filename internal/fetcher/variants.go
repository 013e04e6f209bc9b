package fetcher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/iconidentify/xfetch/internal/domain"
)

// syndicationResponse is the subset of the syndication API response that
// carries video variants.
type syndicationResponse struct {
	MediaDetails []struct {
		Type      string `json:"type"`
		VideoInfo struct {
			Variants []syndicationVariant `json:"variants"`
		} `json:"video_info"`
	} `json:"mediaDetails"`
	ExtendedEntities struct {
		Media []struct {
			Type      string `json:"type"`
			VideoInfo struct {
				Variants []syndicationVariant `json:"variants"`
			} `json:"video_info"`
		} `json:"media"`
	} `json:"extended_entities"`
}

type syndicationVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// AttachVariants resolves quality variants for the snapshot's video and gif
// candidates from the syndication endpoint. Failure is non-fatal: candidates
// keep their original URL and an empty variant list.
func (c *Client) AttachVariants(ctx context.Context, snapshot *domain.PostSnapshot) {
	if !snapshot.HasVideo() {
		return
	}

	url := fmt.Sprintf("%s/tweet-result?id=%s&token=%s",
		c.cfg.SyndicationBaseURL, snapshot.ID, syndicationToken(string(snapshot.ID)))

	var resp syndicationResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		c.logger.Warn("variant resolution failed", "post_id", snapshot.ID, "error", err)
		return
	}

	// One variant list per video media, in the post's media order.
	var perMedia [][]domain.VariantCandidate
	for _, md := range resp.MediaDetails {
		if md.Type != "video" && md.Type != "animated_gif" {
			continue
		}
		perMedia = append(perMedia, classifyVariants(md.VideoInfo.Variants))
	}
	if len(perMedia) == 0 {
		for _, em := range resp.ExtendedEntities.Media {
			if em.Type != "video" && em.Type != "animated_gif" {
				continue
			}
			perMedia = append(perMedia, classifyVariants(em.VideoInfo.Variants))
		}
	}

	next := 0
	for i := range snapshot.Media {
		m := &snapshot.Media[i]
		if m.Kind != domain.MediaKindVideo && m.Kind != domain.MediaKindGIF {
			continue
		}
		if next >= len(perMedia) {
			break
		}
		m.Variants = perMedia[next]
		next++
	}
}

// classifyVariants filters out streaming manifests and unclassifiable
// entries, labels the rest by bitrate and sorts them best-first.
func classifyVariants(raw []syndicationVariant) []domain.VariantCandidate {
	var out []domain.VariantCandidate
	for _, v := range raw {
		if isManifest(v) {
			continue
		}
		if v.Bitrate == 0 && v.ContentType != "video/mp4" {
			continue
		}
		out = append(out, domain.VariantCandidate{
			URL:         v.URL,
			Quality:     qualityForBitrate(v.Bitrate),
			Bitrate:     v.Bitrate,
			ContentType: v.ContentType,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Bitrate > out[j].Bitrate
	})
	return out
}

func isManifest(v syndicationVariant) bool {
	switch v.ContentType {
	case "application/x-mpegURL", "application/dash+xml":
		return true
	}
	return strings.Contains(v.URL, ".m3u8") || strings.Contains(v.URL, ".mpd")
}

// qualityForBitrate maps a variant bitrate to a human-readable label.
func qualityForBitrate(bitrate int) string {
	switch {
	case bitrate >= 2_000_000:
		return "1080p"
	case bitrate >= 1_000_000:
		return "720p"
	case bitrate >= 500_000:
		return "480p"
	case bitrate >= 200_000:
		return "360p"
	default:
		return "low"
	}
}

// syndicationToken derives the access token the syndication endpoint
// expects from a post ID: (id / 1e15 * pi) in base 36 with zeros and the
// decimal point stripped.
func syndicationToken(postID string) string {
	id, err := strconv.ParseFloat(postID, 64)
	if err != nil {
		return "0"
	}

	v := id / 1e15 * math.Pi

	intPart := int64(v)
	frac := v - float64(intPart)

	var b strings.Builder
	b.WriteString(strconv.FormatInt(intPart, 36))
	for i := 0; i < 8 && frac > 0; i++ {
		frac *= 36
		digit := int(frac)
		b.WriteByte("0123456789abcdefghijklmnopqrstuvwxyz"[digit])
		frac -= float64(digit)
	}

	token := b.String()
	token = strings.ReplaceAll(token, "0", "")
	return token
}
