package conversation

import "sort"

// MaxSuggestions caps the list returned to callers.
const MaxSuggestions = 5

type Origin string

const (
	OriginLearned Origin = "learned"
	OriginDefault Origin = "default"
)

type Suggestion struct {
	Text      string
	Relevance float64
	Category  string
	Origin    Origin
}

// MergeSuggestions deduplicates by text keeping the most relevant entry,
// sorts by relevance descending and caps the result at limit.
func MergeSuggestions(limit int, groups ...[]Suggestion) []Suggestion {
	best := map[string]Suggestion{}
	order := []string{}
	for _, group := range groups {
		for _, s := range group {
			if s.Text == "" {
				continue
			}
			if s.Relevance < 0 {
				s.Relevance = 0
			} else if s.Relevance > 1 {
				s.Relevance = 1
			}
			prev, seen := best[s.Text]
			if !seen {
				order = append(order, s.Text)
				best[s.Text] = s
				continue
			}
			if s.Relevance > prev.Relevance {
				best[s.Text] = s
			}
		}
	}
	out := make([]Suggestion, 0, len(order))
	for _, text := range order {
		out = append(out, best[text])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Relevance > out[b].Relevance
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
