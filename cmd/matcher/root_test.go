package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addrmatch/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStagesCommandListsOptionalStages(t *testing.T) {
	var out bytes.Buffer
	cmd := newStagesCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "trie")
}

func TestMergeSpecFileFlagsWin(t *testing.T) {
	path := writeSpec(t, `
fuzzy: from-file.csv
canonical: canonical.csv
stages: [trie]
out: out.csv
explain: true
`)
	cfg := &config.Config{}
	cmd := newRunCmd(cfg, discardLogger())
	require.NoError(t, cmd.Flags().Set("fuzzy", "from-flag.csv"))

	spec := runSpec{Fuzzy: "from-flag.csv"}
	require.NoError(t, mergeSpecFile(cmd, path, &spec))

	assert.Equal(t, "from-flag.csv", spec.Fuzzy, "explicit flag overrides the file")
	assert.Equal(t, "canonical.csv", spec.Canonical)
	assert.Equal(t, []string{"trie"}, spec.Stages)
	assert.Equal(t, "out.csv", spec.Out)
	assert.True(t, spec.Explain)
}

func TestMergeSpecFileMalformedYAML(t *testing.T) {
	path := writeSpec(t, "stages: [unbalanced")
	cfg := &config.Config{}
	cmd := newRunCmd(cfg, discardLogger())

	var spec runSpec
	err := mergeSpecFile(cmd, path, &spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse run spec")
}

func TestRunRequiresInputPaths(t *testing.T) {
	cfg := &config.Config{}
	cmd := newRunCmd(cfg, discardLogger())
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--fuzzy and --canonical")
}
