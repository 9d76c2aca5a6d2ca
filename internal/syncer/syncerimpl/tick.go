package syncerimpl

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"

	"github.com/orgball2608/tweet-crosspost-bot/internal/domain"
	"github.com/orgball2608/tweet-crosspost-bot/internal/normalizer"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
)

const stagingConcurrency = 4

type publishResult struct {
	target    string
	permalink string
	err       error
}

// SyncOnce runs one fetch-normalize-filter-publish tick. Per-item and
// per-target failures are logged and contained; only a ledger persistence
// failure is returned, after requesting process shutdown, because a ledger
// that cannot record progress would make the next tick republish.
func (s *SyncerImpl) SyncOnce(ctx context.Context) error {
	raw, err := s.source.FetchRecent(ctx)
	if err != nil {
		s.logger.Warn("Fetch failed, skipping tick", "error", err)
		return nil
	}

	posts := make([]*domain.Post, 0, len(raw))
	for _, item := range raw {
		post, err := normalizer.Normalize(item)
		if err != nil {
			s.logger.Warn("Skipping malformed item", "rest_id", item.RestID, "error", err)
			continue
		}
		posts = append(posts, &post)
	}

	candidates := s.selectCandidates(posts)
	if len(candidates) == 0 {
		s.logger.Debug("No new posts to sync", "fetched", len(raw))
		return nil
	}
	s.logger.Info("Syncing new posts", "count", len(candidates), "fetched", len(raw))

	for _, post := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.processPost(ctx, post); err != nil {
			return err
		}
	}
	return nil
}

// processPost publishes one post to every target and records it in the
// ledger when at least one target accepted it. Staged media is released
// whatever happens.
func (s *SyncerImpl) processPost(ctx context.Context, post *domain.Post) error {
	if post.HasMedia() {
		media := post.Media()
		s.stageMedia(ctx, media)
		defer func() {
			for _, item := range media {
				s.mediaCache.Release(item.RemoteURL)
			}
		}()
	}

	results := s.fanOut(ctx, post)

	succeeded := lo.CountBy(results, func(r publishResult) bool {
		return r.err == nil
	})
	if succeeded == 0 {
		s.logger.Warn("All targets failed, post left unsynced for retry", "post_id", post.ID)
		return nil
	}

	if err := s.ledger.MarkSynced(ctx, post.ID); err != nil {
		s.logger.Error("Ledger persist failed after publish, shutting down to avoid duplicates",
			"post_id", post.ID, "error", err)
		s.requestShutdown()
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeLedgerIO, "failed to mark post synced")
	}

	s.logger.Info("Post synced", "post_id", post.ID, "succeeded", succeeded, "targets", len(results))
	return nil
}

// stageMedia downloads the post's attachments concurrently. A failed asset
// is logged and left unstaged; publishing proceeds without it.
func (s *SyncerImpl) stageMedia(ctx context.Context, media []domain.MediaItem) {
	if len(media) == 0 {
		return
	}

	stage := func(item domain.MediaItem) {
		if _, err := s.mediaCache.Stage(ctx, item.RemoteURL); err != nil {
			s.logger.Warn("Failed to stage media, publishing without it",
				"url", item.RemoteURL, "error", err)
		}
	}

	pool, err := ants.NewPool(stagingConcurrency)
	if err != nil {
		for _, item := range media {
			stage(item)
		}
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, item := range media {
		item := item
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			stage(item)
		}); err != nil {
			wg.Done()
			stage(item)
		}
	}
	wg.Wait()
}

// fanOut attempts the post on every target concurrently. Each attempt is
// isolated: a panic or error in one adapter never reaches another.
func (s *SyncerImpl) fanOut(ctx context.Context, post *domain.Post) []publishResult {
	results := make([]publishResult, len(s.publishers))

	var wg sync.WaitGroup
	for i, target := range s.publishers {
		i, target := i, target
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = publishResult{target: target.Name(), err: fmt.Errorf("publisher panicked: %v", r)}
				}
			}()

			permalink, err := s.publishTo(ctx, target, post)
			results[i] = publishResult{target: target.Name(), permalink: permalink, err: err}
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("Publish failed", "post_id", post.ID, "target", r.target, "error", r.err)
			continue
		}
		s.logger.Info("Published", "post_id", post.ID, "target", r.target, "permalink", r.permalink)
	}
	return results
}

// publishTo uploads the post's staged media to one target and publishes.
// Media that failed to stage or upload is dropped from this attempt only.
func (s *SyncerImpl) publishTo(ctx context.Context, target publisher.Client, post *domain.Post) (string, error) {
	if err := s.limiter.Wait(ctx, target.Name()); err != nil {
		return "", err
	}

	refs := make([]publisher.MediaRef, 0, len(post.Photos)+len(post.Videos))
	for _, item := range post.Media() {
		localPath, err := s.mediaCache.Resolve(item.RemoteURL)
		if err != nil {
			s.logger.Warn("Media not staged, dropping from attempt",
				"target", target.Name(), "url", item.RemoteURL, "error", err)
			continue
		}
		ref, err := target.UploadMedia(ctx, localPath)
		if err != nil {
			s.logger.Warn("Media upload failed, dropping from attempt",
				"target", target.Name(), "url", item.RemoteURL, "error", err)
			continue
		}
		refs = append(refs, ref)
	}

	var videoURLs []string
	for _, video := range post.Videos {
		if video.DisplayURL != "" {
			videoURLs = append(videoURLs, video.DisplayURL)
		}
	}

	return target.Publish(ctx, publisher.Post{
		Body:      post.Body,
		MediaRefs: refs,
		QuotedURL: post.QuotedPostURL,
		VideoURLs: videoURLs,
	})
}
