package suggest

import (
	"strings"
)

// Category is the institution type a suggestion belongs to.
type Category string

const (
	CategoryIIT     Category = "IIT"
	CategoryNIT     Category = "NIT"
	CategoryIIIT    Category = "IIIT"
	CategoryGFTI    Category = "GFTI"
	CategoryCentral Category = "Central"
	CategoryState   Category = "State"
	CategoryDeemed  Category = "Deemed"
	CategoryPrivate Category = "Private"
)

var knownCategories = []Category{
	CategoryIIT,
	CategoryNIT,
	CategoryIIIT,
	CategoryGFTI,
	CategoryCentral,
	CategoryState,
	CategoryDeemed,
	CategoryPrivate,
}

// Bounds of an external relevance weight.
const (
	MinWeight = 0
	MaxWeight = 100
)

// Categories returns the closed set of institution types.
func Categories() []Category {
	out := make([]Category, len(knownCategories))
	copy(out, knownCategories)
	return out
}

// Known reports whether c is one of the fixed institution types.
func (c Category) Known() bool {
	for _, k := range knownCategories {
		if c == k {
			return true
		}
	}
	return false
}

// ParseCategory maps s onto a known category, ignoring case.
// Unknown values are kept verbatim so flat tables can use their scope name.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, k := range knownCategories {
		if strings.EqualFold(s, string(k)) {
			return k
		}
	}
	return Category(s)
}

// Suggestion is one selectable institution. Values are never mutated after creation.
type Suggestion struct {
	ID              string   `json:"id" msgpack:"id"`
	DisplayName     string   `json:"name" msgpack:"n"`
	Slug            string   `json:"slug" msgpack:"slug"`
	Category        Category `json:"category" msgpack:"c"`
	ProgramID       string   `json:"program" msgpack:"p"`
	RelevanceWeight *int     `json:"weight,omitempty" msgpack:"w,omitempty"`
}

// New builds a Suggestion whose ID is unique within its program.
func New(programID string, category Category, slug, displayName string, weight *int) Suggestion {
	return Suggestion{
		ID:              string(category) + "/" + slug,
		DisplayName:     displayName,
		Slug:            slug,
		Category:        category,
		ProgramID:       programID,
		RelevanceWeight: clampWeight(weight),
	}
}

// Weight returns the relevance weight clamped to [MinWeight, MaxWeight], or 0 when absent.
func (s Suggestion) Weight() int {
	if s.RelevanceWeight == nil {
		return 0
	}
	return clamp(*s.RelevanceWeight)
}

// WeightOf returns a pointer to w clamped to the weight bounds.
func WeightOf(w int) *int {
	v := clamp(w)
	return &v
}

func clampWeight(w *int) *int {
	if w == nil {
		return nil
	}
	return WeightOf(*w)
}

func clamp(w int) int {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
