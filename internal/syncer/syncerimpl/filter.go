package syncerimpl

import (
	"sort"

	"github.com/samber/lo"

	"github.com/orgball2608/tweet-crosspost-bot/internal/domain"
)

// selectCandidates narrows a normalized batch down to the posts a tick
// should publish: never-synced, not a reply, not older than the age
// cutoff, ordered oldest first so targets receive them in timeline order.
func (s *SyncerImpl) selectCandidates(posts []*domain.Post) []*domain.Post {
	candidates := lo.Filter(posts, func(post *domain.Post, _ int) bool {
		if s.ledger.Contains(post.ID) {
			return false
		}
		if post.ReplyTarget != nil {
			return false
		}
		return post.CreatedAt >= s.cutoff
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt < candidates[j].CreatedAt
	})

	return candidates
}
