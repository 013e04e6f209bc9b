package domain

// PostID is the numeric identifier of an X.com post, as a string.
type PostID string

// String returns the string representation of the PostID.
func (id PostID) String() string {
	return string(id)
}

// MediaKind represents the type of a media asset.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindGIF   MediaKind = "gif"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// Valid reports whether the kind is one of the known media kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaKindImage, MediaKindGIF, MediaKindVideo, MediaKindAudio:
		return true
	}
	return false
}

// PostSnapshot is the transient result of resolving a post URL through a
// mirror API. It lives for the duration of one resolve/download flow and is
// never persisted.
type PostSnapshot struct {
	ID           PostID
	URL          string
	AuthorName   string
	AuthorHandle string
	Text         string
	Media        []MediaCandidate
}

// HasVideo returns true if any candidate is a video or animated GIF.
func (p *PostSnapshot) HasVideo() bool {
	for _, m := range p.Media {
		if m.Kind == MediaKindVideo || m.Kind == MediaKindGIF {
			return true
		}
	}
	return false
}

// MediaCandidate is one fetchable asset attached to a post.
type MediaCandidate struct {
	URL          string
	Kind         MediaKind
	ThumbnailURL string
	Duration     float64 // seconds, videos only
	Variants     []VariantCandidate
}

// EffectiveURL returns the variant URL when one was selected, otherwise the
// candidate's own URL.
func (m *MediaCandidate) EffectiveURL(variantURL string) string {
	if variantURL == "" {
		return m.URL
	}
	for _, v := range m.Variants {
		if v.URL == variantURL {
			return v.URL
		}
	}
	return m.URL
}

// VariantCandidate is an alternate encoding of the same video.
type VariantCandidate struct {
	URL         string `json:"url"`
	Quality     string `json:"quality"`
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
}
