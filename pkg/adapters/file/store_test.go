package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.DocumentStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunDocumentStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_ListIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Document{ID: "home"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-home-123.json"), []byte("{}"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, ids)
}

func TestFileStore_MissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Load(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", `a\b`, ".."} {
		assert.Error(t, store.Save(ctx, &domain.Document{ID: id}), id)
		_, err := store.Load(ctx, id)
		assert.Error(t, err, id)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Document{ID: "d", Version: 1}))
	require.NoError(t, store.Save(ctx, &domain.Document{ID: "d", Version: 2}))

	got, err := store.Load(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
}
