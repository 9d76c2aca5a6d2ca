package cacheimpl

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/orgball2608/tweet-crosspost-bot/internal/mediacache"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/retry"
	"go.uber.org/fx"
)

const stagingDirName = "media-staging"

// downloadRetry fails faster than the default policy: a media URL that
// keeps erroring gets another chance on the next tick anyway.
var downloadRetry = retry.Config{
	MaxRetries:      2,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	Multiplier:      2.0,
}

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type CacheImpl struct {
	dir    string
	logger logger.Logger
	http   *http.Client

	mu     sync.Mutex
	staged map[string]string // remote URL -> local path
	group  singleflight.Group
}

// New purges and recreates the staging directory, so files left behind by a
// previous run never leak into this one.
func New(opts Opts) (*CacheImpl, error) {
	dir := filepath.Join(opts.Config.Sync.DataDir, stagingDirName)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("could not purge staging dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create staging dir %s: %w", dir, err)
	}

	return &CacheImpl{
		dir:    dir,
		logger: opts.Logger.WithComponent("MediaCache"),
		http:   &http.Client{Timeout: 2 * time.Minute},
		staged: make(map[string]string),
	}, nil
}

var _ mediacache.Client = (*CacheImpl)(nil)

func (c *CacheImpl) Stage(ctx context.Context, remoteURL string) (string, error) {
	c.mu.Lock()
	if path, ok := c.staged[remoteURL]; ok {
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	// singleflight collapses concurrent stagings of the same URL into one
	// download; losers get the winner's path.
	result, err, _ := c.group.Do(remoteURL, func() (interface{}, error) {
		c.mu.Lock()
		if path, ok := c.staged[remoteURL]; ok {
			c.mu.Unlock()
			return path, nil
		}
		c.mu.Unlock()

		localPath := filepath.Join(c.dir, localFileName(remoteURL))

		download := func() error {
			return c.download(ctx, remoteURL, localPath)
		}
		if err := retry.Do(ctx, c.logger, "StageMedia", download, downloadRetry); err != nil {
			return nil, pkgerrors.WrapWithCode(
				fmt.Errorf("%w: %s: %v", mediacache.ErrFetch, remoteURL, err),
				pkgerrors.CodeMediaFetch,
				"could not stage media",
			)
		}

		c.mu.Lock()
		c.staged[remoteURL] = localPath
		c.mu.Unlock()

		c.logger.Debug("Staged media", "url", remoteURL, "path", localPath)
		return localPath, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *CacheImpl) Resolve(remoteURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.staged[remoteURL]
	if !ok {
		return "", pkgerrors.WrapWithCode(
			fmt.Errorf("%w: %s", mediacache.ErrNotStaged, remoteURL),
			pkgerrors.CodeNotStaged,
			"media was not staged",
		)
	}
	return path, nil
}

func (c *CacheImpl) Release(remoteURL string) {
	c.mu.Lock()
	path, ok := c.staged[remoteURL]
	delete(c.staged, remoteURL)
	c.mu.Unlock()

	if !ok {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Could not remove staged file", "path", path, "error", err)
	}
}

func (c *CacheImpl) download(ctx context.Context, remoteURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Could not close response body", "url", remoteURL, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(localPath)
		return err
	}
	return file.Close()
}

// localFileName derives a collision-free staging name: a short hash of the
// full URL plus the original base name (query and fragment stripped), so the
// extension survives for mime sniffing at upload time.
func localFileName(remoteURL string) string {
	sum := sha1.Sum([]byte(remoteURL))
	prefix := hex.EncodeToString(sum[:6])

	base := remoteURL
	if parsed, err := url.Parse(remoteURL); err == nil && parsed.Path != "" {
		base = path.Base(parsed.Path)
	}
	if base == "" || base == "." || base == "/" {
		return prefix
	}
	return prefix + "_" + base
}
