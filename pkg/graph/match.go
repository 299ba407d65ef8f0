package graph

import (
	"sort"
	"strings"
)

// MatchNames finds known entities mentioned in free text by lexical match
// against normalized canonical names. Used as the query seed extractor when
// no extraction service is available (or as its cheap fallback). A name
// matches only on word boundaries, so "AI" does not match inside "maintain".
func (g *Graph) MatchNames(text string) []EntityID {
	norm := NormalizeName(text)
	if norm == "" {
		return nil
	}
	padded := " " + strip(norm) + " "

	g.mu.RLock()
	defer g.mu.RUnlock()

	var matched []EntityID
	seen := map[EntityID]bool{}
	for key, id := range g.byKey {
		if seen[id] || key.name == "" {
			continue
		}
		if strings.Contains(padded, " "+strip(key.name)+" ") {
			seen[id] = true
			matched = append(matched, id)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched
}

// strip removes punctuation so that "OpenAI's" still matches "openai".
func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
