package fetcher

import (
	"context"
	"fmt"

	"github.com/iconidentify/xfetch/internal/domain"
)

// vxResponse is the response shape of the VxTwitter status API.
type vxResponse struct {
	Text           string `json:"text"`
	TweetURL       string `json:"tweetURL"`
	UserName       string `json:"user_name"`
	UserScreenName string `json:"user_screen_name"`
	MediaExtended  []struct {
		Type           string `json:"type"`
		URL            string `json:"url"`
		ThumbnailURL   string `json:"thumbnail_url"`
		DurationMillis int    `json:"duration_millis"`
	} `json:"media_extended"`
}

// fetchSecondary queries the VxTwitter mirror.
func (c *Client) fetchSecondary(ctx context.Context, postID string) (*domain.PostSnapshot, error) {
	url := fmt.Sprintf("%s/i/status/%s", c.cfg.SecondaryBaseURL, postID)

	var resp vxResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	snapshot := &domain.PostSnapshot{
		ID:           domain.PostID(postID),
		URL:          resp.TweetURL,
		AuthorName:   resp.UserName,
		AuthorHandle: resp.UserScreenName,
		Text:         resp.Text,
	}

	for _, m := range resp.MediaExtended {
		snapshot.Media = append(snapshot.Media, domain.MediaCandidate{
			URL:          m.URL,
			Kind:         vxMediaKind(m.Type),
			ThumbnailURL: m.ThumbnailURL,
			Duration:     float64(m.DurationMillis) / 1000,
		})
	}

	return snapshot, nil
}

func vxMediaKind(t string) domain.MediaKind {
	switch t {
	case "image":
		return domain.MediaKindImage
	case "gif":
		return domain.MediaKindGIF
	case "video":
		return domain.MediaKindVideo
	default:
		return domain.MediaKindVideo
	}
}
