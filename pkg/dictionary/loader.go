/*
Package dictionary loads the static institution tables: for every scope
(counselling program) either a flat list of slugs or a mapping of
institution type to slugs, plus display names and relevance weights.

A table file looks like:

	[scopes]
	jac = ["dtu", "nsut"]

	[scopes.josaa]
	IIT = ["iit-bombay", "iit-delhi"]
	NIT = ["nit-trichy"]

	[names]
	dtu = "Delhi Technological University"
	iit-bombay = "IIT Bombay"

	[weights]
	iit-bombay = 90

The same layout is accepted as YAML, JSON and MessagePack.
*/
package dictionary

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bastiangx/campuscomplete/internal/utils"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
)

// ErrUnknownScope is returned for a scope no table defines.
var ErrUnknownScope = errors.New("unknown scope")

// Scope lists the slugs of one program. Exactly one of Flat and Types is used.
type Scope struct {
	Flat  []string
	Types map[string][]string
}

// Table is a decoded institution table.
type Table struct {
	Scopes  map[string]Scope
	Names   map[string]string
	Weights map[string]int
	Files   []string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		Scopes:  make(map[string]Scope),
		Names:   make(map[string]string),
		Weights: make(map[string]int),
	}
}

// ScopeNames returns the defined scopes, sorted.
func (t *Table) ScopeNames() []string {
	names := make([]string, 0, len(t.Scopes))
	for name := range t.Scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver maps a slug to a display name.
type Resolver interface {
	Resolve(slug string) string
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(slug string) string

func (f ResolverFunc) Resolve(slug string) string {
	return f(slug)
}

// NameMap resolves through a map, falling back to the formatted slug.
type NameMap map[string]string

func (m NameMap) Resolve(slug string) string {
	if name, ok := m[slug]; ok && name != "" {
		return name
	}
	return utils.FormatSlug(slug)
}

// Flatten turns scope into suggestions. A flat scope uses the scope name as
// category, a typed scope uses the type. Duplicate IDs keep the first entry.
func (t *Table) Flatten(scope string, resolve Resolver) ([]suggest.Suggestion, error) {
	s, ok := t.Scopes[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	if resolve == nil {
		resolve = NameMap(t.Names)
	}

	filter := utils.NewDuplicateFilter()
	var out []suggest.Suggestion
	add := func(category suggest.Category, slug string) {
		var weight *int
		if w, ok := t.Weights[slug]; ok {
			weight = suggest.WeightOf(w)
		}
		sg := suggest.New(scope, category, slug, resolve.Resolve(slug), weight)
		if filter.ShouldInclude(sg.ID) {
			out = append(out, sg)
		}
	}

	if s.Types == nil {
		for _, slug := range s.Flat {
			add(suggest.ParseCategory(scope), slug)
		}
		return out, nil
	}

	types := make([]string, 0, len(s.Types))
	for typ := range s.Types {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		for _, slug := range s.Types[typ] {
			add(suggest.ParseCategory(typ), slug)
		}
	}
	return out, nil
}

// Merge folds other into t. Scope lists are appended; names and weights from
// other win.
func (t *Table) Merge(other *Table) {
	for name, s := range other.Scopes {
		cur, ok := t.Scopes[name]
		if !ok {
			t.Scopes[name] = s.clone()
			continue
		}
		if s.Types == nil && cur.Types == nil {
			cur.Flat = append(cur.Flat, s.Flat...)
		} else {
			if cur.Types == nil {
				cur.Types = map[string][]string{name: cur.Flat}
				cur.Flat = nil
			}
			if s.Types == nil {
				cur.Types[name] = append(cur.Types[name], s.Flat...)
			}
			for typ, slugs := range s.Types {
				cur.Types[typ] = append(cur.Types[typ], slugs...)
			}
		}
		t.Scopes[name] = cur
	}
	for slug, name := range other.Names {
		t.Names[slug] = name
	}
	for slug, w := range other.Weights {
		t.Weights[slug] = w
	}
	t.Files = append(t.Files, other.Files...)
}

func (s Scope) clone() Scope {
	out := Scope{Flat: slices.Clone(s.Flat)}
	if s.Types != nil {
		out.Types = make(map[string][]string, len(s.Types))
		for typ, slugs := range s.Types {
			out.Types[typ] = slices.Clone(slugs)
		}
	}
	return out
}

// LoadFile reads one table file.
func LoadFile(path string) (*Table, error) {
	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateFileFormat(path, format); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", path, err)
	}
	raw, err := decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode table %s: %w", path, err)
	}

	t, err := parseTable(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid table %s: %w", path, err)
	}
	t.Files = []string{path}
	log.Debugf("Loaded table %s: %d scopes, %d names", path, len(t.Scopes), len(t.Names))
	return t, nil
}

// LoadDir reads every table file in dir, in name order, and merges them.
// Files that fail are skipped and reported in the returned error; the
// table holds whatever loaded.
func LoadDir(dir string) (*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read table dir %s: %w", dir, err)
	}

	table := NewTable()
	var errs *multierror.Error
	for _, e := range entries {
		if e.IsDir() || !utils.IsTableFile(e.Name()) {
			continue
		}
		t, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warnf("Skipping table: %v", err)
			errs = multierror.Append(errs, err)
			continue
		}
		table.Merge(t)
	}

	if len(table.Files) == 0 && errs == nil {
		return table, fmt.Errorf("no table files found in %s", dir)
	}
	return table, errs.ErrorOrNil()
}

func parseTable(raw map[string]any) (*Table, error) {
	t := NewTable()

	scopes, ok := raw["scopes"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing [scopes] section")
	}
	for name, v := range scopes {
		s, err := parseScope(v)
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", name, err)
		}
		t.Scopes[name] = s
	}

	if names, ok := raw["names"].(map[string]any); ok {
		for slug, v := range names {
			if name, ok := v.(string); ok {
				t.Names[slug] = name
			}
		}
	}
	if weights, ok := raw["weights"].(map[string]any); ok {
		for slug, v := range weights {
			if w, ok := toInt(v); ok {
				t.Weights[slug] = w
			}
		}
	}
	return t, nil
}

func parseScope(v any) (Scope, error) {
	switch val := v.(type) {
	case []any:
		flat, err := toStrings(val)
		return Scope{Flat: flat}, err
	case map[string]any:
		types := make(map[string][]string, len(val))
		for typ, list := range val {
			items, ok := list.([]any)
			if !ok {
				return Scope{}, fmt.Errorf("type %s is not a list", typ)
			}
			slugs, err := toStrings(items)
			if err != nil {
				return Scope{}, fmt.Errorf("type %s: %w", typ, err)
			}
			types[typ] = slugs
		}
		return Scope{Types: types}, nil
	}
	return Scope{}, fmt.Errorf("expected a list or a table, got %T", v)
}

func toStrings(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("slug %v is not a string", it)
		}
		out = append(out, s)
	}
	return out, nil
}

// toInt accepts the integer types each decoder produces, and whole floats from JSON.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
