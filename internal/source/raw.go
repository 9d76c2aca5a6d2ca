package source

// Raw tweet payload as it appears inside the timeline GraphQL response.
// Only the fields the normalizer consumes are mapped.

type RawItem struct {
	RestID       string     `json:"rest_id"`
	Core         *RawCore   `json:"core,omitempty"`
	Legacy       RawLegacy  `json:"legacy"`
	QuotedStatus *RawResult `json:"quoted_status_result,omitempty"`
}

// RawResult is the {"result": {...}} wrapper the API nests tweets in.
type RawResult struct {
	Result *RawItem `json:"result"`
}

type RawCore struct {
	UserResults struct {
		Result struct {
			RestID string `json:"rest_id"`
		} `json:"result"`
	} `json:"user_results"`
}

type RawLegacy struct {
	FullText              string        `json:"full_text"`
	CreatedAt             string        `json:"created_at"` // "Mon Jan 02 15:04:05 +0000 2006"
	Entities              RawEntities   `json:"entities"`
	ExtendedEntities      RawEntities   `json:"extended_entities"`
	QuotedStatusPermalink *RawPermalink `json:"quoted_status_permalink,omitempty"`
	InReplyToUserID       string        `json:"in_reply_to_user_id_str,omitempty"`
	InReplyToStatusID     string        `json:"in_reply_to_status_id_str,omitempty"`
	RetweetedStatus       *RawResult    `json:"retweeted_status_result,omitempty"`
}

type RawEntities struct {
	Media []RawMedia `json:"media,omitempty"`
	URLs  []RawURL   `json:"urls,omitempty"`
}

type RawMedia struct {
	IDStr         string        `json:"id_str"`
	Type          string        `json:"type"` // "photo" | "video" | "animated_gif"
	URL           string        `json:"url"`  // short token appearing in full_text
	MediaURLHTTPS string        `json:"media_url_https"`
	VideoInfo     *RawVideoInfo `json:"video_info,omitempty"`
}

type RawVideoInfo struct {
	Variants []RawVideoVariant `json:"variants"`
}

type RawVideoVariant struct {
	Bitrate     int    `json:"bitrate,omitempty"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type RawURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

type RawPermalink struct {
	URL string `json:"url"`
}

// AuthorID returns the rest id of the item's author, empty when the payload
// did not carry user results.
func (r *RawItem) AuthorID() string {
	if r.Core == nil {
		return ""
	}
	return r.Core.UserResults.Result.RestID
}

// IsRepost reports whether the item is a repost of another item.
func (r *RawItem) IsRepost() bool {
	return r.Legacy.RetweetedStatus != nil
}
