package nlu

import (
	"sort"

	"ordering_assistant/pkg"
)

// Extract scans text against every registered grammar and returns the
// matches ordered by start offset, ties broken by registration order.
//
// Each grammar is scanned on its own with a fresh iteration owned by the
// regexp engine, so no cursor survives between calls. Zero-width matches
// are dropped. Matches of one type never overlap.
func (r *Registry) Extract(text string) []pkg.EntityMatch {
	if text == "" || len(r.grammars) == 0 {
		return nil
	}

	var matches []pkg.EntityMatch
	for _, g := range r.grammars {
		matches = append(matches, g.scan(text)...)
	}

	// grammars were appended in registration order, a stable sort keeps it for ties
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].StartOffset < matches[j].StartOffset
	})
	return matches
}

// ExtractType scans text against a single registered grammar
func (r *Registry) ExtractType(entityType, text string) []pkg.EntityMatch {
	i, ok := r.index[entityType]
	if !ok || text == "" {
		return nil
	}
	return r.grammars[i].scan(text)
}

func (g grammar) scan(text string) []pkg.EntityMatch {
	// FindAllStringIndex advances at least one rune past an empty match
	// and never returns overlapping spans.
	locs := g.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	out := make([]pkg.EntityMatch, 0, len(locs))
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if end <= start {
			continue
		}
		out = append(out, pkg.EntityMatch{
			Type:        g.entityType,
			Value:       text[start:end],
			SourceText:  text,
			StartOffset: start,
			EndOffset:   end,
			Confidence:  g.confidence,
		})
	}
	return out
}

// FirstOfType returns the first match of the given type
func FirstOfType(matches []pkg.EntityMatch, entityType string) (pkg.EntityMatch, bool) {
	for _, m := range matches {
		if m.Type == entityType {
			return m, true
		}
	}
	return pkg.EntityMatch{}, false
}
