package twitterimpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timelineFixture = `{
  "data": {
    "user": {
      "result": {
        "timeline_v2": {
          "timeline": {
            "instructions": [
              {"type": "TimelineClearCache"},
              {
                "type": "TimelineAddEntries",
                "entries": [
                  {
                    "entryId": "tweet-100",
                    "content": {
                      "itemContent": {
                        "tweet_results": {
                          "result": {
                            "rest_id": "100",
                            "core": {"user_results": {"result": {"rest_id": "42"}}},
                            "legacy": {
                              "full_text": "plain tweet",
                              "created_at": "Wed Oct 10 20:19:24 +0000 2018"
                            }
                          }
                        }
                      }
                    }
                  },
                  {
                    "entryId": "who-to-follow-1",
                    "content": {}
                  },
                  {
                    "entryId": "tweet-101",
                    "content": {
                      "itemContent": {
                        "tweet_results": {}
                      }
                    }
                  },
                  {
                    "entryId": "profile-conversation-1",
                    "content": {
                      "items": [
                        {
                          "item": {
                            "itemContent": {
                              "tweet_results": {
                                "result": {
                                  "rest_id": "200",
                                  "core": {"user_results": {"result": {"rest_id": "42"}}},
                                  "legacy": {
                                    "full_text": "thread head",
                                    "created_at": "Wed Oct 10 20:20:00 +0000 2018"
                                  }
                                }
                              }
                            }
                          }
                        },
                        {
                          "item": {
                            "itemContent": {
                              "tweet_results": {
                                "result": {
                                  "rest_id": "201",
                                  "core": {"user_results": {"result": {"rest_id": "42"}}},
                                  "legacy": {
                                    "full_text": "thread reply",
                                    "created_at": "Wed Oct 10 20:21:00 +0000 2018",
                                    "in_reply_to_status_id_str": "200"
                                  }
                                }
                              }
                            }
                          }
                        }
                      ]
                    }
                  }
                ]
              }
            ]
          }
        }
      }
    }
  }
}`

func TestExtractTimelineItems(t *testing.T) {
	items, err := extractTimelineItems([]byte(timelineFixture))
	require.NoError(t, err)

	// tweet-101 has an empty tweet_results wrapper and must be dropped;
	// the conversation entry contributes both of its items.
	require.Len(t, items, 3)
	assert.Equal(t, "100", items[0].RestID)
	assert.Equal(t, "200", items[1].RestID)
	assert.Equal(t, "201", items[2].RestID)

	assert.Equal(t, "42", items[0].AuthorID())
	assert.Equal(t, "plain tweet", items[0].Legacy.FullText)
	assert.Equal(t, "200", items[2].Legacy.InReplyToStatusID)
}

func TestExtractTimelineItems_RejectsMalformedBody(t *testing.T) {
	_, err := extractTimelineItems([]byte("<html>rate limited</html>"))
	require.Error(t, err)
}

func TestExtractTimelineItems_EmptyTimeline(t *testing.T) {
	items, err := extractTimelineItems([]byte(`{"data":{"user":{"result":{"timeline_v2":{"timeline":{"instructions":[]}}}}}}`))
	require.NoError(t, err)
	assert.Empty(t, items)
}
