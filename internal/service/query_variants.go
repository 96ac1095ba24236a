package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

// rrfK is the rank offset of reciprocal rank fusion.
const rrfK = 60

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {}, "about": {},
	"tell": {}, "explain": {}, "please": {},
}

// queryVariants derives up to max alternative phrasings of query: its
// clauses and a stopword-free keyword form. The query itself is excluded.
func queryVariants(query string, max int) []string {
	clean := strings.TrimSpace(query)
	if max <= 0 || clean == "" {
		return nil
	}

	seen := map[string]struct{}{strings.ToLower(clean): {}}
	var variants []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || len(variants) >= max {
			return
		}
		key := strings.ToLower(candidate)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, candidate)
	}

	for _, part := range splitQueryParts(clean) {
		add(part)
	}
	add(keywordQuery(clean))
	return variants
}

func splitQueryParts(query string) []string {
	var parts []string
	chunks := strings.FieldsFunc(query, func(r rune) bool {
		switch r {
		case ',', ';', '/', '|', ':', '?', '!', '(', ')', '[', ']', '{', '}':
			return true
		default:
			return false
		}
	})
	for _, chunk := range chunks {
		for _, sub := range strings.Split(chunk, " and ") {
			if sub = strings.TrimSpace(sub); sub != "" {
				parts = append(parts, sub)
			}
		}
	}
	return parts
}

func keywordQuery(query string) string {
	var tokens []string
	for _, token := range strings.FieldsFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || r == '?' || r == '!' || r == ','
	}) {
		if _, ok := stopwords[strings.ToLower(token)]; ok {
			continue
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

// fuseRankings merges ranked lists with reciprocal rank fusion. The fused
// score replaces the similarity score; ties go to the smaller segment id.
func fuseRankings(lists [][]domain.RetrievalResult, k int) []domain.RetrievalResult {
	type fused struct {
		segment domain.Segment
		score   float64
	}
	byID := make(map[string]*fused)
	for _, list := range lists {
		for rank, r := range list {
			f, ok := byID[r.Segment.ID]
			if !ok {
				f = &fused{segment: r.Segment}
				byID[r.Segment.ID] = f
			}
			f.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	out := make([]domain.RetrievalResult, 0, len(byID))
	for _, f := range byID {
		out = append(out, domain.RetrievalResult{Segment: f.segment, Score: float32(f.score)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Segment.ID < out[j].Segment.ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
