package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSlug(t *testing.T) {
	assert.Equal(t, "IIT BOMBAY", FormatSlug("iit-bombay"))
	assert.Equal(t, "NIT TRICHY", FormatSlug("  nit--trichy_ "))
	assert.Equal(t, "", FormatSlug(""))
}

func TestIsValidQuery(t *testing.T) {
	testCases := []struct {
		in   string
		want bool
	}{
		{"iit b", true},
		{"IIT (ISM) Dhanbad", true},
		{"St. Xavier's", true},
		{"   ", false},
		{"2024", false},
		{"%%$#", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, IsValidQuery(tc.in), tc.in)
	}
}

func TestQueryLenOK(t *testing.T) {
	assert.True(t, QueryLenOK(" dtu ", 1, 3))
	assert.False(t, QueryLenOK("dtu", 4, 0))
	assert.False(t, QueryLenOK("delhi", 1, 3))
	assert.True(t, QueryLenOK("délhi", 1, 5), "counts runes")
}

func TestDuplicateFilter(t *testing.T) {
	f := NewDuplicateFilter("IIT/iit-delhi")

	assert.False(t, f.ShouldInclude("iit/IIT-Delhi "))
	assert.True(t, f.ShouldInclude("NIT/nit-delhi"))
	assert.False(t, f.ShouldInclude("nit/nit-delhi"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Delhi…", Truncate("Delhi Technological University", 6))
	assert.Equal(t, "DTU", Truncate("DTU", 6))
}

func TestCreateRankList(t *testing.T) {
	assert.Equal(t, []uint16{1, 2, 3}, CreateRankList(3))
	assert.Empty(t, CreateRankList(0))
}

func TestExtractHelpers(t *testing.T) {
	data := map[string]any{"n": int64(4), "b": true, "s": "x"}

	n, ok := ExtractInt(data, "n")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	_, ok = ExtractInt(data, "s")
	assert.False(t, ok)
	s, ok := Extract[string](data, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)
	_, ok = Extract[bool](data, "missing")
	assert.False(t, ok)
}

func TestIsTableFile(t *testing.T) {
	assert.True(t, IsTableFile("josaa.TOML"))
	assert.True(t, IsTableFile("jac.yml"))
	assert.False(t, IsTableFile("dict_0001.bin"))
}

func TestListTableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "josaa.toml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(""), 0644))

	assert.Equal(t, []string{filepath.Join(dir, "josaa.toml")}, listTableFiles(dir))
	assert.Nil(t, listTableFiles(filepath.Join(dir, "missing")))
}

func TestPathResolver_GetDataDir(t *testing.T) {
	// Given: tables in the working directory only
	exec, work := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(work, "tables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "tables", "jac.yaml"), []byte(""), 0o644))
	pr := &PathResolver{execDir: exec, workDir: work, configDir: t.TempDir()}

	// When: resolving a relative path
	dir, err := pr.GetDataDir("tables")

	// Then: the working directory candidate wins
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "tables"), dir)

	_, err = pr.GetDataDir("nowhere")
	assert.ErrorIs(t, err, ErrNoTables)
}

func TestPathResolver_SessionDir(t *testing.T) {
	pr := &PathResolver{execDir: "/opt/cc"}

	assert.Equal(t, filepath.Join("/opt/cc", "state"), pr.SessionDir("state"))
	assert.Equal(t, "/var/cc", pr.SessionDir("/var/cc"))
	assert.Equal(t, filepath.Join(os.TempDir(), "campuscomplete", "session"), pr.SessionDir(""))
}

func TestDiagnosePathIssues(t *testing.T) {
	exec := t.TempDir()
	pr := &PathResolver{execDir: exec, configDir: t.TempDir()}

	d := pr.DiagnosePathIssues("data")

	assert.Equal(t, ErrNoTables.Error(), d.Error)
	require.NotEmpty(t, d.Candidates)
	assert.Equal(t, filepath.Join(exec, "data"), d.Candidates[0].Path)
	assert.False(t, d.Candidates[0].Exists)
}

func TestSaveTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	type section struct {
		MaxLimit int `toml:"max_limit"`
	}

	require.NoError(t, SaveTOMLFile(map[string]section{"server": {MaxLimit: 20}}, path))

	raw, err := ParseTOMLWithRecovery(path)
	require.NoError(t, err)
	server, ok := ExtractSection(raw, "server")
	require.True(t, ok)
	n, _ := ExtractInt(server, "max_limit")
	assert.Equal(t, 20, n)
	assert.True(t, CheckDirStatus(filepath.Dir(path)).Writable)
}
