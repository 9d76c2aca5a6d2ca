// Package filestore persists the sync ledger as a single JSON document in
// the data directory, replaced atomically on every write.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"go.uber.org/fx"
)

const ledgerFileName = "synced_posts.json"

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type FileStore struct {
	path   string
	logger logger.Logger

	mu     sync.RWMutex
	synced map[string]struct{}
}

// ledgerDocument is the on-disk shape, keyed so the format can grow without
// breaking older files.
type ledgerDocument struct {
	SyncedPostIDs []string `json:"syncedPostIds"`
}

func New(opts Opts) *FileStore {
	return &FileStore{
		path:   filepath.Join(opts.Config.Sync.DataDir, ledgerFileName),
		logger: opts.Logger.WithComponent("LedgerFileStore"),
		synced: make(map[string]struct{}),
	}
}

var _ ledger.Repository = (*FileStore)(nil)

func (f *FileStore) Load(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.logger.Info("No existing ledger file, starting empty", "path", f.path)
		return nil
	}
	if err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: read %s: %v", ledger.ErrPersist, f.path, err),
			pkgerrors.CodeLedgerIO,
			"could not read ledger",
		)
	}

	var doc ledgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: decode %s: %v", ledger.ErrPersist, f.path, err),
			pkgerrors.CodeLedgerIO,
			"could not decode ledger",
		)
	}

	for _, id := range doc.SyncedPostIDs {
		f.synced[id] = struct{}{}
	}
	f.logger.Info("Loaded ledger", "synced_count", len(f.synced), "path", f.path)
	return nil
}

func (f *FileStore) Contains(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.synced[id]
	return ok
}

func (f *FileStore) MarkSynced(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.synced[id]; ok {
		return nil
	}
	f.synced[id] = struct{}{}

	if err := f.persistLocked(); err != nil {
		// Roll back the in-memory add so a retry re-attempts the write.
		delete(f.synced, id)
		return err
	}
	return nil
}

// persistLocked writes the whole set to a temp file and renames it over the
// previous one, so a crash mid-write never corrupts durable state.
func (f *FileStore) persistLocked() error {
	ids := make([]string, 0, len(f.synced))
	for id := range f.synced {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ledgerDocument{SyncedPostIDs: ids})
	if err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: encode: %v", ledger.ErrPersist, err),
			pkgerrors.CodeLedgerIO,
			"could not encode ledger",
		)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: mkdir: %v", ledger.ErrPersist, err),
			pkgerrors.CodeLedgerIO,
			"could not create data dir",
		)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: write %s: %v", ledger.ErrPersist, tmp, err),
			pkgerrors.CodeLedgerIO,
			"could not write ledger",
		)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: rename %s: %v", ledger.ErrPersist, tmp, err),
			pkgerrors.CodeLedgerIO,
			"could not replace ledger",
		)
	}
	return nil
}
