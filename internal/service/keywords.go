package service

import (
	"sort"
	"strings"
	"unicode"
)

// KeywordStrategy finds terms that recur across several blocker texts.
type KeywordStrategy interface {
	Recurring(texts []string, minDocs, limit int) []string
}

// FrequencyKeywords is a word-count heuristic: words longer than four
// characters that show up in at least minDocs texts, most frequent first.
type FrequencyKeywords struct{}

const minKeywordLen = 5

func (FrequencyKeywords) Recurring(texts []string, minDocs, limit int) []string {
	counts := map[string]int{}
	docs := map[string]int{}
	for _, text := range texts {
		seen := map[string]bool{}
		for _, w := range tokenize(text) {
			counts[w]++
			if !seen[w] {
				seen[w] = true
				docs[w]++
			}
		}
	}

	var words []string
	for w, n := range docs {
		if n >= minDocs {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	return words
}

func tokenize(text string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
	var out []string
	for _, w := range strings.Fields(clean) {
		if len([]rune(w)) >= minKeywordLen {
			out = append(out, w)
		}
	}
	return out
}
