package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const tomlTable = `
[scopes]
jac = ["dtu", "nsut"]

[scopes.josaa]
NIT = ["nit-trichy"]
IIT = ["iit-bombay", "iit-delhi"]

[names]
dtu = "Delhi Technological University"
nsut = "Netaji Subhas University of Technology"
iit-bombay = "IIT Bombay"
iit-delhi = "IIT Delhi"

[weights]
iit-bombay = 90
nit-trichy = 250
`

const yamlTable = `
scopes:
  acpc:
    - ldce
    - nirma
names:
  ldce: LD College of Engineering
weights:
  nirma: 40
`

const jsonTable = `{
  "scopes": {"wbjee": {"State": ["jadavpur"], "Private": ["heritage-institute"]}},
  "names": {"jadavpur": "Jadavpur University"},
  "weights": {"jadavpur": 75}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func names(ss []suggest.Suggestion) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.DisplayName
	}
	return out
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "programs.toml", tomlTable)

	table, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"jac", "josaa"}, table.ScopeNames())
	assert.Equal(t, []string{"dtu", "nsut"}, table.Scopes["jac"].Flat)
	assert.Equal(t, []string{"iit-bombay", "iit-delhi"}, table.Scopes["josaa"].Types["IIT"])
	assert.Equal(t, 90, table.Weights["iit-bombay"])
	assert.Equal(t, []string{path}, table.Files)
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	y, err := LoadFile(writeFile(t, dir, "gujarat.yml", yamlTable))
	require.NoError(t, err)
	assert.Equal(t, []string{"ldce", "nirma"}, y.Scopes["acpc"].Flat)
	assert.Equal(t, 40, y.Weights["nirma"])

	j, err := LoadFile(writeFile(t, dir, "bengal.json", jsonTable))
	require.NoError(t, err)
	assert.Equal(t, []string{"jadavpur"}, j.Scopes["wbjee"].Types["State"])
	assert.Equal(t, 75, j.Weights["jadavpur"])
}

func TestLoadFile_Msgpack(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{
		"scopes":  map[string]any{"comedk": []string{"rvce", "bmsce"}},
		"names":   map[string]any{"rvce": "RV College of Engineering"},
		"weights": map[string]any{"rvce": 60},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "karnataka.msgpack")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	table, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"rvce", "bmsce"}, table.Scopes["comedk"].Flat)
	assert.Equal(t, 60, table.Weights["rvce"])
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(writeFile(t, dir, "notes.txt", "hello"))
	assert.Error(t, err, "unknown extension")

	_, err = LoadFile(writeFile(t, dir, "empty.toml", ""))
	assert.Error(t, err, "too small")

	_, err = LoadFile(writeFile(t, dir, "noscopes.toml", "[names]\ndtu = \"DTU\"\n"))
	assert.ErrorContains(t, err, "missing [scopes]")

	_, err = LoadFile(writeFile(t, dir, "badslug.json", `{"scopes": {"jac": ["dtu", 7]}}`))
	assert.ErrorContains(t, err, "not a string")

	_, err = LoadFile(writeFile(t, dir, "broken.json", `{"scopes": `))
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestFlatten_TypedScopeUsesTypeAsCategory(t *testing.T) {
	table, err := LoadFile(writeFile(t, t.TempDir(), "programs.toml", tomlTable))
	require.NoError(t, err)

	got, err := table.Flatten("josaa", nil)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"IIT Bombay", "IIT Delhi", "NIT TRICHY"}, names(got), "types in name order, missing names formatted from slug")
	assert.Equal(t, suggest.CategoryIIT, got[0].Category)
	assert.Equal(t, "IIT/iit-bombay", got[0].ID)
	assert.Equal(t, "josaa", got[0].ProgramID)
	assert.Equal(t, 90, got[0].Weight())
	assert.Nil(t, got[1].RelevanceWeight)
	assert.Equal(t, suggest.MaxWeight, got[2].Weight(), "weights are clamped")
}

func TestFlatten_FlatScopeUsesScopeAsCategory(t *testing.T) {
	table, err := LoadFile(writeFile(t, t.TempDir(), "programs.toml", tomlTable))
	require.NoError(t, err)

	got, err := table.Flatten("jac", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"Delhi Technological University", "Netaji Subhas University of Technology"}, names(got))
	assert.Equal(t, suggest.Category("jac"), got[0].Category)
}

func TestFlatten_DuplicatesAndUnknownScope(t *testing.T) {
	table := NewTable()
	table.Scopes["jac"] = Scope{Flat: []string{"dtu", "DTU", "dtu", "igdtuw"}}

	got, err := table.Flatten("jac", ResolverFunc(func(slug string) string { return "name:" + slug }))
	require.NoError(t, err)
	assert.Equal(t, []string{"name:dtu", "name:igdtuw"}, names(got))

	_, err = table.Flatten("mhtcet", nil)
	assert.ErrorIs(t, err, ErrUnknownScope)
}

func TestNameMap_FallsBackToFormattedSlug(t *testing.T) {
	m := NameMap{"dtu": "Delhi Technological University", "blank": ""}

	assert.Equal(t, "Delhi Technological University", m.Resolve("dtu"))
	assert.Equal(t, "IIT BOMBAY", m.Resolve("iit-bombay"))
	assert.Equal(t, "BLANK", m.Resolve("blank"))
}

func TestLoadDir_MergesAndCollectsErrors(t *testing.T) {
	// Given: two valid tables touching the same scope and one broken file
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", "[scopes]\njac = [\"dtu\"]\n[names]\ndtu = \"Old\"\n")
	writeFile(t, dir, "b.yaml", "scopes:\n  jac: [nsut]\nnames:\n  dtu: Delhi Technological University\n")
	writeFile(t, dir, "c.json", `{"nope": 1}`)
	writeFile(t, dir, "README.md", "ignored")

	// When: loading the directory
	table, err := LoadDir(dir)

	// Then: valid files merge in name order, the broken one is reported
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)
	assert.Equal(t, []string{"dtu", "nsut"}, table.Scopes["jac"].Flat)
	assert.Equal(t, "Delhi Technological University", table.Names["dtu"])
	assert.Len(t, table.Files, 2)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no table files")

	_, err = LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMerge_FlatIntoTyped(t *testing.T) {
	a := NewTable()
	a.Scopes["josaa"] = Scope{Types: map[string][]string{"IIT": {"iit-delhi"}}}
	b := NewTable()
	b.Scopes["josaa"] = Scope{Flat: []string{"spa-delhi"}}

	a.Merge(b)

	assert.Equal(t, []string{"spa-delhi"}, a.Scopes["josaa"].Types["josaa"])
	assert.Equal(t, []string{"iit-delhi"}, a.Scopes["josaa"].Types["IIT"])
}

func TestMerge_AdoptedScopeDoesNotAliasSource(t *testing.T) {
	// Given: an empty table merging scopes only the other table has
	a := NewTable()
	b := NewTable()
	b.Scopes["jac"] = Scope{Flat: []string{"dtu"}}
	b.Scopes["josaa"] = Scope{Types: map[string][]string{"IIT": {"iit-delhi"}}}
	a.Merge(b)

	// When: a later merge appends into the adopted scopes
	c := NewTable()
	c.Scopes["jac"] = Scope{Flat: []string{"nsut"}}
	c.Scopes["josaa"] = Scope{Types: map[string][]string{"IIT": {"iit-bombay"}, "NIT": {"nit-trichy"}}}
	a.Merge(c)

	// Then: the source table is unchanged
	assert.Equal(t, []string{"dtu", "nsut"}, a.Scopes["jac"].Flat)
	assert.Equal(t, []string{"iit-delhi", "iit-bombay"}, a.Scopes["josaa"].Types["IIT"])
	assert.Equal(t, []string{"dtu"}, b.Scopes["jac"].Flat)
	assert.Equal(t, map[string][]string{"IIT": {"iit-delhi"}}, b.Scopes["josaa"].Types)
}

func TestGetFormatInfo(t *testing.T) {
	// Given: the TOML format and an unregistered one
	// When: their info is looked up
	info, ok := GetFormatInfo(FormatTOML)
	_, unknown := GetFormatInfo(FormatUnknown)

	// Then: TOML is described and the unregistered one is not
	require.True(t, ok)
	assert.Equal(t, "TOML Institution Table", info.Description)
	assert.Contains(t, info.Extensions, ".toml")
	assert.Equal(t, info.Description, FormatTOML.String())
	assert.False(t, unknown)
	assert.Equal(t, "unknown", FormatUnknown.String())
}
