package nlu

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"ordering_assistant/pkg"
)

// GrammarKind tags how a grammar descriptor is compiled
type GrammarKind int

const (
	// KindVocabulary is a closed list of literal phrases
	KindVocabulary GrammarKind = iota
	// KindPattern is a list of RE2 patterns tried as one alternation
	KindPattern
)

func (k GrammarKind) String() string {
	switch k {
	case KindVocabulary:
		return "vocabulary"
	case KindPattern:
		return "pattern"
	default:
		return fmt.Sprintf("GrammarKind(%d)", int(k))
	}
}

// GrammarSpec describes one entity grammar before compilation
type GrammarSpec struct {
	Type       string
	Kind       GrammarKind
	Words      []string
	Patterns   []string
	Confidence float64
}

type grammar struct {
	entityType string
	kind       GrammarKind
	re         *regexp.Regexp
	confidence float64
}

// Registry holds compiled entity grammars in registration order.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	grammars []grammar
	index    map[string]int
}

// NewRegistry compiles the given grammar specs. Registration only happens
// here; every problem with a grammar is reported as a ConfigurationError.
func NewRegistry(specs ...GrammarSpec) (*Registry, error) {
	r := &Registry{
		grammars: make([]grammar, 0, len(specs)),
		index:    make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		if strings.TrimSpace(spec.Type) == "" {
			return nil, pkg.NewConfigError("entities", "grammar with empty entity type")
		}
		if _, dup := r.index[spec.Type]; dup {
			return nil, pkg.NewConfigError("entities."+spec.Type, "entity type registered twice")
		}

		re, err := compileGrammar(spec)
		if err != nil {
			return nil, err
		}

		confidence := spec.Confidence
		if confidence <= 0 {
			confidence = defaultConfidence(spec.Type)
		}

		r.index[spec.Type] = len(r.grammars)
		r.grammars = append(r.grammars, grammar{
			entityType: spec.Type,
			kind:       spec.Kind,
			re:         re,
			confidence: confidence,
		})
	}

	return r, nil
}

func compileGrammar(spec GrammarSpec) (*regexp.Regexp, error) {
	field := "entities." + spec.Type

	var alternatives []string
	switch spec.Kind {
	case KindVocabulary:
		words := normalizeWords(spec.Words)
		if len(words) == 0 {
			return nil, pkg.NewConfigError(field, "vocabulary grammar has no words")
		}
		for _, w := range words {
			alternatives = append(alternatives, regexp.QuoteMeta(w))
		}
	case KindPattern:
		if len(spec.Patterns) == 0 {
			return nil, pkg.NewConfigError(field, "pattern grammar has no patterns")
		}
		for _, p := range spec.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, &pkg.ConfigurationError{Field: field, Reason: "invalid pattern " + p, Err: err}
			}
			alternatives = append(alternatives, "(?:"+p+")")
		}
	default:
		return nil, pkg.NewConfigError(field, "unknown grammar kind "+spec.Kind.String())
	}

	re, err := regexp.Compile(strings.Join(alternatives, "|"))
	if err != nil {
		return nil, &pkg.ConfigurationError{Field: field, Reason: "cannot compile grammar", Err: err}
	}
	return re, nil
}

// normalizeWords drops blanks and duplicates and orders the words longest
// first, so the leftmost-first alternation prefers the longest phrase.
func normalizeWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// Restrict returns a registry holding only the named entity types, still in
// their original registration order. An empty list keeps every type.
func (r *Registry) Restrict(types []string) (*Registry, error) {
	if len(types) == 0 {
		return r, nil
	}

	keep := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if _, ok := r.index[t]; !ok {
			return nil, pkg.NewConfigError("supported_entities", "unknown entity type "+t)
		}
		keep[t] = true
	}

	out := &Registry{index: make(map[string]int, len(keep))}
	for _, g := range r.grammars {
		if keep[g.entityType] {
			out.index[g.entityType] = len(out.grammars)
			out.grammars = append(out.grammars, g)
		}
	}
	return out, nil
}

// Types lists the registered entity types in registration order
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.grammars))
	for _, g := range r.grammars {
		types = append(types, g.entityType)
	}
	return types
}

// Has reports whether the entity type is registered
func (r *Registry) Has(entityType string) bool {
	_, ok := r.index[entityType]
	return ok
}

// Len returns the number of registered grammars
func (r *Registry) Len() int {
	return len(r.grammars)
}
