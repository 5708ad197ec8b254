package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookgrid/internal/config"
	"bookgrid/internal/models"
)

func TestSnapshotCarriesRecentCommits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	// Commit rows and snapshot immediately, before any natural checkpoint.
	block := &models.AvailabilityBlock{BusinessID: 42, Date: "2025-06-02", IsAllDay: true}
	require.NoError(t, db.CreateBlock(ctx, block))

	storage := t.TempDir()
	backup := NewBackupService(db, config.BackupConfig{StoragePath: storage}, &logger)
	require.NoError(t, backup.Snapshot(ctx))

	files, err := os.ReadDir(storage)
	require.NoError(t, err)
	require.Len(t, files, 1)

	restored, err := NewDB(filepath.Join(storage, files[0].Name()), &logger)
	require.NoError(t, err)
	defer restored.Close()

	blocks, err := restored.ListBlocks(ctx, 42)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, block.ID, blocks[0].ID)
}

func TestPruneOldKeepsRecentSnapshots(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.Nop()
	storage := t.TempDir()

	stale := filepath.Join(storage, "bookgrid_20200101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(storage, "bookgrid_recent.db")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	backup := NewBackupService(db, config.BackupConfig{StoragePath: storage, RetentionDays: 14}, &logger)
	backup.pruneOld()

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
