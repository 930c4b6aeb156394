package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/trackhook/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) tracking.Store {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tracking.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "tracking.db")
	s, err := OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for _, table := range []string{"tracking_records", "tracking_history"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", table).Scan(&name)
		require.NoError(t, err, "table %q missing", table)
	}
}

func TestOpenSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tracking.db")

	s, err := OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.UpsertMerge(ctx, "1001", tracking.Patch{DisplayOrderNumber: "#1001", TrackingURL: "https://t.example/a"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec, err := s.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "https://t.example/a", *rec.TrackingURL)
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}

func TestCheckLocalFilesystemWith(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, "nested", "dir", "tracking.db")

	t.Run("local filesystem passes and inspects nearest existing parent", func(t *testing.T) {
		var inspected string
		err := checkLocalFilesystemWith(dbPath, func(path string) (string, error) {
			inspected = path
			return "ext4", nil
		})
		require.NoError(t, err)
		assert.Equal(t, root, inspected)
	})

	t.Run("network filesystem is rejected", func(t *testing.T) {
		err := checkLocalFilesystemWith(dbPath, func(string) (string, error) {
			return "nfs", nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network filesystem \"nfs\"")
	})

	t.Run("detection failure is tolerated", func(t *testing.T) {
		err := checkLocalFilesystemWith(dbPath, func(string) (string, error) {
			return "", assert.AnError
		})
		assert.NoError(t, err)
	})
}

func TestIsNetworkFilesystem(t *testing.T) {
	assert.True(t, isNetworkFilesystem("NFS"))
	assert.True(t, isNetworkFilesystem(" smb2 "))
	assert.False(t, isNetworkFilesystem("apfs"))
	assert.False(t, isNetworkFilesystem(""))
}
