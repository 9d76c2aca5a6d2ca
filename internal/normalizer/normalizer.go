// Package normalizer converts raw source items into the canonical Post
// entity. It is pure: no I/O, no clock, no shared state.
package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orgball2608/tweet-crosspost-bot/internal/domain"
	"github.com/orgball2608/tweet-crosspost-bot/internal/source"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
)

// ErrMalformedItem marks a raw item missing required fields. Callers skip
// the single item and keep the batch.
var ErrMalformedItem = errors.New("malformed source item")

// MaxQuoteDepth bounds recursive quote normalization. The source imposes no
// limit of its own; anything nested deeper keeps its quote URL but loses
// the inline quoted post.
const MaxQuoteDepth = 10

const mp4ContentType = "video/mp4"

func Normalize(raw source.RawItem) (domain.Post, error) {
	return normalize(raw, MaxQuoteDepth)
}

func normalize(raw source.RawItem, depth int) (domain.Post, error) {
	if raw.RestID == "" {
		return domain.Post{}, pkgerrors.WrapWithCode(ErrMalformedItem, pkgerrors.CodeMalformedSourceItem, "item has no id")
	}

	createdAt, err := time.Parse(time.RubyDate, raw.Legacy.CreatedAt)
	if err != nil {
		return domain.Post{}, pkgerrors.WrapWithCode(
			ErrMalformedItem,
			pkgerrors.CodeMalformedSourceItem,
			fmt.Sprintf("item %s has unparsable timestamp %q", raw.RestID, raw.Legacy.CreatedAt),
		)
	}

	post := domain.Post{
		ID:        raw.RestID,
		Body:      raw.Legacy.FullText,
		CreatedAt: createdAt.UTC().Unix(),
	}

	media := mergeMedia(raw.Legacy.ExtendedEntities.Media, raw.Legacy.Entities.Media)

	// Media display tokens come out of the body before URL expansion runs,
	// otherwise an expanded link could re-introduce a token just removed.
	for _, m := range media {
		if m.URL == "" {
			continue
		}
		post.Body = strings.TrimSpace(strings.ReplaceAll(post.Body, m.URL, ""))
	}

	for _, m := range media {
		switch m.Type {
		case "photo":
			post.Photos = append(post.Photos, domain.MediaItem{
				RemoteURL:  m.MediaURLHTTPS,
				DisplayURL: m.URL,
			})
		case "video":
			variantURL, ok := bestMP4Variant(m.VideoInfo)
			if !ok {
				continue
			}
			post.Videos = append(post.Videos, domain.MediaItem{
				RemoteURL:  variantURL,
				DisplayURL: m.URL,
			})
		}
	}

	for _, u := range raw.Legacy.Entities.URLs {
		if u.URL == "" {
			continue
		}
		post.Body = strings.TrimSpace(strings.ReplaceAll(post.Body, u.URL, u.ExpandedURL))
	}

	if raw.Legacy.QuotedStatusPermalink != nil {
		post.QuotedPostURL = raw.Legacy.QuotedStatusPermalink.URL
	}

	if raw.QuotedStatus != nil && raw.QuotedStatus.Result != nil && depth > 0 {
		quoted, err := normalize(*raw.QuotedStatus.Result, depth-1)
		if err != nil {
			return domain.Post{}, err
		}
		post.QuotedPost = &quoted
	}

	if raw.Legacy.InReplyToUserID != "" || raw.Legacy.InReplyToStatusID != "" {
		post.ReplyTarget = &domain.ReplyTarget{
			AuthorID: raw.Legacy.InReplyToUserID,
			PostID:   raw.Legacy.InReplyToStatusID,
		}
	}

	return post, nil
}

// mergeMedia combines the full and legacy media containers. A legacy
// descriptor is dropped when the full container already carries the same
// platform-assigned id.
func mergeMedia(full, legacy []source.RawMedia) []source.RawMedia {
	merged := make([]source.RawMedia, 0, len(full)+len(legacy))
	merged = append(merged, full...)

	for _, m := range legacy {
		duplicate := false
		for _, existing := range full {
			if existing.IDStr == m.IDStr {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged = append(merged, m)
		}
	}
	return merged
}

// bestMP4Variant returns the url of the highest-bitrate mp4 variant, or
// false when the video has no mp4 rendition at all.
func bestMP4Variant(info *source.RawVideoInfo) (string, bool) {
	if info == nil {
		return "", false
	}
	var (
		bestURL     string
		bestBitrate = -1
	)
	for _, v := range info.Variants {
		if v.ContentType != mp4ContentType {
			continue
		}
		if v.Bitrate > bestBitrate {
			bestBitrate = v.Bitrate
			bestURL = v.URL
		}
	}
	return bestURL, bestURL != ""
}
