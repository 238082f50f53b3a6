package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractDocument(id string, version uint64) *domain.Document {
	root := domain.New("root", "Body")
	box := domain.New("box", "Box")
	box.Children = append(box.Children, domain.TextChild("hello"))
	box.Props = map[string]any{"class": "hero"}
	root.Children = append(root.Children, domain.InstanceChild(box))
	return &domain.Document{
		ID:        id,
		Version:   version,
		Tree:      domain.Flatten(root),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore
// implementation adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	docID := fmt.Sprintf("contract-%d", time.Now().UnixNano())

	t.Run("Save and Load", func(t *testing.T) {
		doc := contractDocument(docID, 3)

		err := store.Save(ctx, doc)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, doc.ID, loaded.ID)
		assert.Equal(t, doc.Version, loaded.Version)
		assert.Equal(t, "root", loaded.Tree.Root)
		require.Contains(t, loaded.Tree.Instances, "box")
		assert.Equal(t, "Box", loaded.Tree.Instances["box"].Component)
		assert.Equal(t, "hero", loaded.Tree.Instances["box"].Props["class"])
		assert.Equal(t, doc.Tree.Instances["box"].Children, loaded.Tree.Instances["box"].Children)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractDocument(docID, 4)))
		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), loaded.Version)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+docID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractDocument(docID, 1)))

		err := store.Delete(ctx, docID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, docID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "Load after Delete should return ErrDocumentNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := docID + "-1"
		id2 := docID + "-2"
		_ = store.Save(ctx, contractDocument(id1, 1))
		_ = store.Save(ctx, contractDocument(id2, 1))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunTemplateSourceContract verifies a TemplateSource against the templates
// it is expected to serve.
func RunTemplateSourceContract(t *testing.T, src TemplateSource, want map[string][]byte) {
	t.Run("ListTemplates", func(t *testing.T) {
		names, err := src.ListTemplates()
		require.NoError(t, err)
		for name := range want {
			assert.Contains(t, names, name)
		}
		assert.IsNonDecreasing(t, names, "names must be sorted")
	})

	t.Run("GetTemplate", func(t *testing.T) {
		for name, content := range want {
			got, err := src.GetTemplate(name)
			require.NoError(t, err, name)
			assert.JSONEq(t, string(content), string(got), name)
		}
	})

	t.Run("GetTemplate Missing", func(t *testing.T) {
		_, err := src.GetTemplate("missing-template")
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	})
}
