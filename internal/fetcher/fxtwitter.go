package fetcher

import (
	"context"
	"fmt"

	"github.com/iconidentify/xfetch/internal/domain"
)

// fxResponse is the response shape of the FxTwitter status API.
type fxResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Tweet   struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Text   string `json:"text"`
		Author struct {
			Name       string `json:"name"`
			ScreenName string `json:"screen_name"`
		} `json:"author"`
		Media struct {
			All []struct {
				Type         string  `json:"type"`
				URL          string  `json:"url"`
				ThumbnailURL string  `json:"thumbnail_url"`
				Duration     float64 `json:"duration"`
			} `json:"all"`
			Photos []struct {
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"photos"`
			Videos []struct {
				Type         string  `json:"type"`
				URL          string  `json:"url"`
				ThumbnailURL string  `json:"thumbnail_url"`
				Duration     float64 `json:"duration"`
			} `json:"videos"`
		} `json:"media"`
	} `json:"tweet"`
}

// fetchPrimary queries the FxTwitter mirror.
func (c *Client) fetchPrimary(ctx context.Context, postID string) (*domain.PostSnapshot, error) {
	url := fmt.Sprintf("%s/status/%s", c.cfg.PrimaryBaseURL, postID)

	var resp fxResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, fmt.Errorf("fxtwitter code %d: %s", resp.Code, resp.Message)
	}

	snapshot := &domain.PostSnapshot{
		ID:           domain.PostID(postID),
		URL:          resp.Tweet.URL,
		AuthorName:   resp.Tweet.Author.Name,
		AuthorHandle: resp.Tweet.Author.ScreenName,
		Text:         resp.Tweet.Text,
	}

	// media.all preserves the post's media order; photos/videos are the
	// fallback when all is absent.
	if len(resp.Tweet.Media.All) > 0 {
		for _, m := range resp.Tweet.Media.All {
			snapshot.Media = append(snapshot.Media, domain.MediaCandidate{
				URL:          m.URL,
				Kind:         fxMediaKind(m.Type),
				ThumbnailURL: m.ThumbnailURL,
				Duration:     m.Duration,
			})
		}
		return snapshot, nil
	}

	for _, p := range resp.Tweet.Media.Photos {
		snapshot.Media = append(snapshot.Media, domain.MediaCandidate{
			URL:  p.URL,
			Kind: domain.MediaKindImage,
		})
	}
	for _, v := range resp.Tweet.Media.Videos {
		snapshot.Media = append(snapshot.Media, domain.MediaCandidate{
			URL:          v.URL,
			Kind:         fxMediaKind(v.Type),
			ThumbnailURL: v.ThumbnailURL,
			Duration:     v.Duration,
		})
	}

	return snapshot, nil
}

func fxMediaKind(t string) domain.MediaKind {
	switch t {
	case "photo":
		return domain.MediaKindImage
	case "gif":
		return domain.MediaKindGIF
	case "video":
		return domain.MediaKindVideo
	default:
		return domain.MediaKindVideo
	}
}
