package syncerimpl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger"
	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger/filestore"
	mock_ledger "github.com/orgball2608/tweet-crosspost-bot/internal/ledger/mocks"
	"github.com/orgball2608/tweet-crosspost-bot/internal/mediacache/cacheimpl"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	mock_publisher "github.com/orgball2608/tweet-crosspost-bot/internal/publisher/mocks"
	"github.com/orgball2608/tweet-crosspost-bot/internal/source"
	mock_source "github.com/orgball2608/tweet-crosspost-bot/internal/source/mocks"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
)

// rubyCreatedAt is 2018-10-10T20:19:24Z, epoch 1539202764.
const rubyCreatedAt = "Wed Oct 10 20:19:24 +0000 2018"

func newTestConfig(t *testing.T, afterTimestamp int64) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sync.DataDir = t.TempDir()
	cfg.Sync.IntervalMs = 60000
	cfg.Sync.AfterTimestamp = afterTimestamp
	return cfg
}

func newTestSyncer(t *testing.T, cfg *config.Config, src source.Client, pubs ...publisher.Client) (*SyncerImpl, *filestore.FileStore) {
	t.Helper()
	log := logger.New(logger.Opts{Env: "development"})
	store := filestore.New(filestore.Opts{Config: cfg, Logger: log})
	require.NoError(t, store.Load(context.Background()))
	cache, err := cacheimpl.New(cacheimpl.Opts{Config: cfg, Logger: log})
	require.NoError(t, err)
	return New(Opts{
		Config:     cfg,
		Logger:     log,
		Source:     src,
		Publishers: pubs,
		Ledger:     store,
		MediaCache: cache,
	}), store
}

func newTestSyncerWithLedger(t *testing.T, cfg *config.Config, src source.Client, repo ledger.Repository, pubs ...publisher.Client) *SyncerImpl {
	t.Helper()
	log := logger.New(logger.Opts{Env: "development"})
	cache, err := cacheimpl.New(cacheimpl.Opts{Config: cfg, Logger: log})
	require.NoError(t, err)
	return New(Opts{
		Config:     cfg,
		Logger:     log,
		Source:     src,
		Publishers: pubs,
		Ledger:     repo,
		MediaCache: cache,
	})
}

func rawTextItem(id, text string) source.RawItem {
	return source.RawItem{
		RestID: id,
		Legacy: source.RawLegacy{FullText: text, CreatedAt: rubyCreatedAt},
	}
}

func newMockPublisher(ctrl *gomock.Controller, name string) *mock_publisher.MockClient {
	pub := mock_publisher.NewMockClient(ctrl)
	pub.EXPECT().Name().Return(name).AnyTimes()
	return pub
}

func TestSyncOnce_PublishesOnceAndStaysIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).
		Return([]source.RawItem{rawTextItem("1", "hello world")}, nil).
		Times(2)

	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return("https://a/1", nil).Times(1)

	s, store := newTestSyncer(t, newTestConfig(t, 1), src, pub)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.True(t, store.Contains("1"))

	// The second tick sees the same item again and must not republish.
	require.NoError(t, s.SyncOnce(context.Background()))
}

func TestSyncOnce_PartialTargetFailureStillMarksSynced(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).
		Return([]source.RawItem{rawTextItem("1", "hello")}, nil).
		Times(2)

	failing := newMockPublisher(ctrl, "target-a")
	failing.EXPECT().Publish(gomock.Any(), gomock.Any()).Return("", errors.New("boom")).Times(1)

	working := newMockPublisher(ctrl, "target-b")
	working.EXPECT().Publish(gomock.Any(), gomock.Any()).Return("https://b/1", nil).Times(1)

	s, store := newTestSyncer(t, newTestConfig(t, 1), src, failing, working)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.True(t, store.Contains("1"))

	// One success was enough. The failed target never sees the post again.
	require.NoError(t, s.SyncOnce(context.Background()))
}

func TestSyncOnce_AllTargetsFailedRetriesNextTick(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).
		Return([]source.RawItem{rawTextItem("1", "hello")}, nil).
		Times(2)

	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return("", errors.New("down")).Times(2)

	s, store := newTestSyncer(t, newTestConfig(t, 1), src, pub)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.False(t, store.Contains("1"))

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.False(t, store.Contains("1"))
}

func TestSyncOnce_MalformedItemSkipsOnlyThatItem(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).
		Return([]source.RawItem{
			{Legacy: source.RawLegacy{FullText: "no id", CreatedAt: rubyCreatedAt}},
			rawTextItem("2", "valid"),
		}, nil)

	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p publisher.Post) (string, error) {
			assert.Equal(t, "valid", p.Body)
			return "https://a/2", nil
		})

	s, store := newTestSyncer(t, newTestConfig(t, 1), src, pub)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.True(t, store.Contains("2"))
}

func TestSyncOnce_FetchFailureSkipsTick(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).Return(nil, errors.New("timeline capture timed out"))

	s, _ := newTestSyncer(t, newTestConfig(t, 1), src)

	require.NoError(t, s.SyncOnce(context.Background()))
}

func TestSyncOnce_MediaIsStagedUploadedAndReleased(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	item := rawTextItem("1", "look https://t.co/abc")
	item.Legacy.ExtendedEntities.Media = []source.RawMedia{{
		IDStr:         "m1",
		Type:          "photo",
		URL:           "https://t.co/abc",
		MediaURLHTTPS: server.URL + "/pic.jpg",
	}}

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).Return([]source.RawItem{item}, nil)

	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().UploadMedia(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, localPath string) (publisher.MediaRef, error) {
			_, err := os.Stat(localPath)
			assert.NoError(t, err, "staged file must exist during upload")
			return "ref-1", nil
		})
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p publisher.Post) (string, error) {
			require.Len(t, p.MediaRefs, 1)
			assert.Equal(t, publisher.MediaRef("ref-1"), p.MediaRefs[0])
			return "https://a/1", nil
		})

	cfg := newTestConfig(t, 1)
	s, store := newTestSyncer(t, cfg, src, pub)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.True(t, store.Contains("1"))

	entries, err := os.ReadDir(filepath.Join(cfg.Sync.DataDir, "media-staging"))
	require.NoError(t, err)
	assert.Empty(t, entries, "staged media must be released after the post is processed")
}

func TestSyncOnce_UploadFailurePublishesWithoutMedia(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	item := rawTextItem("1", "look https://t.co/abc")
	item.Legacy.ExtendedEntities.Media = []source.RawMedia{{
		IDStr:         "m1",
		Type:          "photo",
		URL:           "https://t.co/abc",
		MediaURLHTTPS: server.URL + "/pic.jpg",
	}}

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).Return([]source.RawItem{item}, nil)

	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().UploadMedia(gomock.Any(), gomock.Any()).
		Return(nil, publisher.ErrUnsupportedMediaType)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p publisher.Post) (string, error) {
			assert.Empty(t, p.MediaRefs)
			return "https://a/1", nil
		})

	s, store := newTestSyncer(t, newTestConfig(t, 1), src, pub)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.True(t, store.Contains("1"))
}

func TestSyncOnce_VideoLinkReachesImageOnlyTarget(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	defer server.Close()

	item := rawTextItem("1", "clip https://t.co/vid")
	item.Legacy.ExtendedEntities.Media = []source.RawMedia{{
		IDStr: "m1",
		Type:  "video",
		URL:   "https://t.co/vid",
		VideoInfo: &source.RawVideoInfo{
			Variants: []source.RawVideoVariant{
				{Bitrate: 800, ContentType: "video/mp4", URL: server.URL + "/clip.mp4"},
			},
		},
	}}

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).Return([]source.RawItem{item}, nil)

	// The target rejects the video upload, but its publish payload must
	// still carry the video's short link.
	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().UploadMedia(gomock.Any(), gomock.Any()).
		Return(nil, publisher.ErrUnsupportedMediaType)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p publisher.Post) (string, error) {
			assert.Empty(t, p.MediaRefs)
			assert.Equal(t, []string{"https://t.co/vid"}, p.VideoURLs)
			return "https://a/1", nil
		})

	s, store := newTestSyncer(t, newTestConfig(t, 1), src, pub)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.True(t, store.Contains("1"))
}

func TestSyncOnce_LedgerPersistFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).
		Return([]source.RawItem{rawTextItem("1", "hello")}, nil)

	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return("https://a/1", nil)

	cfg := newTestConfig(t, 1)
	s, _ := newTestSyncer(t, cfg, src, pub)

	// A directory squatting on the ledger path makes the atomic rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(cfg.Sync.DataDir, "synced_posts.json"), 0o755))

	require.Error(t, s.SyncOnce(context.Background()))
}

func TestSyncOnce_LedgerErrorAbortsRestOfBatch(t *testing.T) {
	ctrl := gomock.NewController(t)

	older := rawTextItem("1", "first")
	newer := rawTextItem("2", "second")
	newer.Legacy.CreatedAt = "Wed Oct 10 20:20:24 +0000 2018"

	src := mock_source.NewMockClient(ctrl)
	src.EXPECT().FetchRecent(gomock.Any()).Return([]source.RawItem{newer, older}, nil)

	repo := mock_ledger.NewMockRepository(ctrl)
	repo.EXPECT().Contains(gomock.Any()).Return(false).AnyTimes()
	repo.EXPECT().MarkSynced(gomock.Any(), "1").Return(ledger.ErrPersist)

	// Only the oldest post is attempted; the failed persist aborts the
	// tick before the second candidate is touched.
	pub := newMockPublisher(ctrl, "target-a")
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return("https://a/1", nil).Times(1)

	s := newTestSyncerWithLedger(t, newTestConfig(t, 1), src, repo, pub)

	err := s.SyncOnce(context.Background())
	require.ErrorIs(t, err, ledger.ErrPersist)
}
