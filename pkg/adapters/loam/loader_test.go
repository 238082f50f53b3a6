package loam

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landingMD = `---
id: landing
title: Landing page
tree:
  id: root
  component: Body
  children:
    - component: Heading
      props:
        level: 1
      children:
        - Welcome
    - component: Box
      children:
        - component: Paragraph
          children:
            - Hello
---
A hero and one paragraph.`

const blankJSON = `{
  "id": "blank.json",
  "title": "Blank",
  "tree": {"id": "root", "component": "Body", "children": []}
}`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, dir, files)
	return New(loam.NewTypedRepository[TemplateMetadata](repo))
}

func TestLoader_Contract(t *testing.T) {
	loader := newLoader(t, map[string]string{"blank.json": blankJSON})
	ports.RunTemplateSourceContract(t, loader, map[string][]byte{
		"blank": []byte(`{"id":"root","component":"Body","children":[]}`),
	})
}

func TestLoader_GetTemplate_DerivesIDs(t *testing.T) {
	loader := newLoader(t, map[string]string{"landing.md": landingMD})

	data, err := loader.GetTemplate("landing")
	require.NoError(t, err)

	var root domain.Instance
	require.NoError(t, json.Unmarshal(data, &root))
	assert.Equal(t, "root", root.ID)
	require.Len(t, root.Children, 2)

	heading := root.Children[0].Instance
	require.NotNil(t, heading)
	assert.Equal(t, "root-0", heading.ID)
	assert.Equal(t, "Heading", heading.Component)
	assert.Equal(t, "Welcome", heading.Children[0].Text)

	box := root.Children[1].Instance
	require.NotNil(t, box)
	assert.Equal(t, "root-1-0", box.Children[0].Instance.ID)
}

func TestLoader_TemplatePopulatesStore(t *testing.T) {
	loader := newLoader(t, map[string]string{"landing.md": landingMD})
	data, err := loader.GetTemplate("landing")
	require.NoError(t, err)

	s := tree.New()
	_, err = s.Populate(data)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
}

func TestLoader_ListTemplates_NormalizesIDs(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"landing.md":    landingMD,
		"blank.json":    blankJSON,
		"implicit.yaml": "tree:\n  component: Body\n",
	})

	names, err := loader.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"blank", "implicit", "landing"}, names)
}

func TestLoader_ListTemplates_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"foo.md":   "---\nid: foo\ntree:\n  component: Body\n---\n",
		"foo.json": `{"id": "foo", "tree": {"component": "Body"}}`,
	})

	_, err := loader.ListTemplates()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_MalformedTemplates(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"empty.md":   "---\ntitle: nothing\n---\n",
		"nocomp.md": "---\ntree:\n  children: []\n---\n",
		"badkid.md": "---\ntree:\n  component: Body\n  children:\n    - children: [x]\n---\n",
	})

	for _, name := range []string{"empty", "nocomp", "badkid"} {
		_, err := loader.GetTemplate(name)
		assert.ErrorIs(t, err, domain.ErrMalformedTree, name)
	}

	_, err := loader.GetTemplate("missing")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestLoader_Describe(t *testing.T) {
	loader := newLoader(t, map[string]string{"landing.md": landingMD})

	title, desc, err := loader.Describe("landing")
	require.NoError(t, err)
	assert.Equal(t, "Landing page", title)
	assert.Equal(t, "A hero and one paragraph.", desc)
}
