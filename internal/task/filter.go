package task

import (
	"strings"
	"unicode"
)

// normalizeSearch lowercases and drops punctuation so "Buy milk!" matches "buy milk".
func normalizeSearch(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == ':' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchScore returns 0 when query is not a subsequence of text, and a positive score
// otherwise. Runs of consecutive characters and matches at word starts score higher.
func MatchScore(query, text string) int {
	q := []rune(normalizeSearch(query))
	t := []rune(normalizeSearch(text))
	if len(q) == 0 {
		return 1
	}
	score, run, qi := 0, 0, 0
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] != q[qi] {
			run = 0
			continue
		}
		run++
		score += 1 + run
		if ti == 0 || t[ti-1] == ' ' || t[ti-1] == '-' {
			score += 3
		}
		qi++
	}
	if qi < len(q) {
		return 0
	}
	return score
}

// Filter keeps cards whose title matches query. Order is preserved because card
// position within a lane is meaningful.
func Filter(cards []Card, query string) []Card {
	if strings.TrimSpace(query) == "" {
		return cards
	}
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if MatchScore(query, c.Title) > 0 {
			out = append(out, c)
		}
	}
	return out
}
