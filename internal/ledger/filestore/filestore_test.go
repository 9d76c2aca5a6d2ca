package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
)

func newStore(t *testing.T, dir string) *FileStore {
	t.Helper()

	cfg := &config.Config{}
	cfg.Sync.DataDir = dir
	return New(Opts{Config: cfg, Logger: logger.New(logger.Opts{})})
}

func TestLoad_MissingFileIsEmptySet(t *testing.T) {
	store := newStore(t, t.TempDir())

	require.NoError(t, store.Load(context.Background()))
	assert.False(t, store.Contains("anything"))
}

func TestMarkSynced_PersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newStore(t, dir)
	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.MarkSynced(ctx, "111"))
	require.NoError(t, store.MarkSynced(ctx, "222"))

	reopened := newStore(t, dir)
	require.NoError(t, reopened.Load(ctx))
	assert.True(t, reopened.Contains("111"))
	assert.True(t, reopened.Contains("222"))
	assert.False(t, reopened.Contains("333"))
}

func TestMarkSynced_DuplicatesCollapse(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newStore(t, dir)
	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.MarkSynced(ctx, "111"))
	require.NoError(t, store.MarkSynced(ctx, "111"))

	data, err := os.ReadFile(filepath.Join(dir, ledgerFileName))
	require.NoError(t, err)

	var doc ledgerDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []string{"111"}, doc.SyncedPostIDs)
}

func TestMarkSynced_WritesAtomically(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newStore(t, dir)
	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.MarkSynced(ctx, "111"))

	// No temp file may linger after a successful persist.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledgerFileName, entries[0].Name())
}

func TestMarkSynced_FailureRollsBackMemory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newStore(t, dir)
	require.NoError(t, store.Load(ctx))

	// A directory squatting on the ledger path makes the atomic rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, ledgerFileName), 0o755))

	err := store.MarkSynced(ctx, "111")
	require.Error(t, err)
	assert.False(t, store.Contains("111"), "failed persist must not leave the id marked")
}
