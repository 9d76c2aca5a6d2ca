package twitterimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"

	"github.com/orgball2608/tweet-crosspost-bot/internal/source"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
)

// FetchRecent opens the user's profile and captures the UserTweets GraphQL
// response the page issues while rendering, then walks the timeline payload
// into raw items. Items by other authors and reposts are dropped here;
// everything else is the normalizer's job.
func (t *TwitterImpl) FetchRecent(ctx context.Context) ([]source.RawItem, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return nil, pkgerrors.WrapWithCode(err, pkgerrors.CodeNotReady, "source session not established")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	resp, err := t.page.ExpectResponse(
		func(r playwright.Response) bool {
			return strings.Contains(r.URL(), "graphql") && strings.Contains(r.URL(), "/UserTweets")
		},
		func() error {
			_, gotoErr := t.page.Goto(t.profileURL())
			return gotoErr
		},
		playwright.PageExpectResponseOptions{Timeout: playwright.Float(60000)},
	)
	if err != nil {
		return nil, fmt.Errorf("timeline response was not captured: %w", err)
	}

	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("could not read timeline response body: %w", err)
	}

	if _, err := t.page.Goto("about:blank"); err != nil {
		t.logger.Debug("Could not navigate away after fetch", "error", err)
	}

	items, err := extractTimelineItems(body)
	if err != nil {
		return nil, err
	}

	items = lo.Filter(items, func(item source.RawItem, _ int) bool {
		return item.AuthorID() == t.config.Twitter.UserID && !item.IsRepost()
	})

	t.logger.Debug("Fetched recent items", "count", len(items))
	return items, nil
}

type timelineResponse struct {
	Data struct {
		User struct {
			Result struct {
				TimelineV2 struct {
					Timeline struct {
						Instructions []timelineInstruction `json:"instructions"`
					} `json:"timeline"`
				} `json:"timeline_v2"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
}

type timelineEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		ItemContent *timelineItemContent `json:"itemContent"`
		Items       []struct {
			Item struct {
				ItemContent timelineItemContent `json:"itemContent"`
			} `json:"item"`
		} `json:"items"`
	} `json:"content"`
}

type timelineItemContent struct {
	TweetResults source.RawResult `json:"tweet_results"`
}

// extractTimelineItems flattens TimelineAddEntries instructions. Plain
// tweet entries carry one item; profile-conversation entries (threads shown
// on the profile) carry several.
func extractTimelineItems(body []byte) ([]source.RawItem, error) {
	var tl timelineResponse
	if err := json.Unmarshal(body, &tl); err != nil {
		return nil, fmt.Errorf("could not decode timeline payload: %w", err)
	}

	var items []source.RawItem
	for _, instruction := range tl.Data.User.Result.TimelineV2.Timeline.Instructions {
		if instruction.Type != "TimelineAddEntries" {
			continue
		}
		for _, entry := range instruction.Entries {
			switch {
			case strings.HasPrefix(entry.EntryID, "tweet-"):
				if entry.Content.ItemContent != nil && entry.Content.ItemContent.TweetResults.Result != nil {
					items = append(items, *entry.Content.ItemContent.TweetResults.Result)
				}
			case strings.HasPrefix(entry.EntryID, "profile-conversation-"):
				for _, conversationItem := range entry.Content.Items {
					if conversationItem.Item.ItemContent.TweetResults.Result != nil {
						items = append(items, *conversationItem.Item.ItemContent.TweetResults.Result)
					}
				}
			}
		}
	}
	return items, nil
}
