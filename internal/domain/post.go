package domain

// Post is a canonical content item pulled from the source platform,
// normalized and ready to be fanned out to the configured targets.
type Post struct {
	ID            string // Post ID from the source platform, stable and unique
	Body          string // Post text after media-token stripping and URL expansion
	CreatedAt     int64  // Epoch seconds
	QuotedPostURL string // Permalink of the quoted post, if any
	QuotedPost    *Post  // Normalized quoted post, if the source carried one
	Photos        []MediaItem
	Videos        []MediaItem
	ReplyTarget   *ReplyTarget
}

// MediaItem is a photo or video attachment on a Post.
type MediaItem struct {
	RemoteURL  string // Canonical fetch location of the asset
	DisplayURL string // Short token as it appears in the original body text
}

// ReplyTarget identifies the author and/or post a Post replies to.
type ReplyTarget struct {
	AuthorID string
	PostID   string
}

// HasMedia reports whether the post carries any photo or video.
func (p *Post) HasMedia() bool {
	return len(p.Photos) > 0 || len(p.Videos) > 0
}

// Media returns photos followed by videos, preserving source order within each kind.
func (p *Post) Media() []MediaItem {
	media := make([]MediaItem, 0, len(p.Photos)+len(p.Videos))
	media = append(media, p.Photos...)
	media = append(media, p.Videos...)
	return media
}
