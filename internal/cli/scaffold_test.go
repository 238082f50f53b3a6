package cli

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaffold_ServedByLoam(t *testing.T) {
	dir := t.TempDir()
	names, err := Scaffold(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"landing", "article", "contact"}, names)

	loader, err := loam.Open(dir)
	require.NoError(t, err)
	listed, err := loader.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"article", "contact", "landing"}, listed)

	title, _, err := loader.Describe("contact")
	require.NoError(t, err)
	assert.Equal(t, "Contact form", title)

	data, err := loader.GetTemplate("landing")
	require.NoError(t, err)
	s := tree.New()
	_, err = s.Populate(data)
	require.NoError(t, err)
	assert.True(t, s.Contains("hero"))
	assert.Equal(t, 5, s.Len())
}
