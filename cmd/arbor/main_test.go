package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "arbor version")
}

func TestComponents(t *testing.T) {
	out, err := run(t, "components")
	require.NoError(t, err)
	assert.Contains(t, out, "Paragraph")
	assert.Contains(t, out, "container,editable")
	assert.NotContains(t, out, "Body")
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ landing")

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"id":"root","component":"Body","children":["hi"]}`), 0644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"root":"root","instances":{}}`), 0644))

	out, err = run(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
}

func TestGraph_Template(t *testing.T) {
	out, err := run(t, "graph", "--template", "landing", "--highlight", "hero")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "hero")
}

func TestInspect_FileStoreDocument(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "inspect", "missing", "--store", "file", "--dir", dir)
	require.Error(t, err)

	out, err := run(t, "inspect", "--template", "article", "--outline")
	require.NoError(t, err)
	assert.Contains(t, out, "Heading")
}

func TestTemplates_InitAndList(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "templates", "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 templates")

	out, err = run(t, "templates", "ls", "--templates", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "- contact")
}
