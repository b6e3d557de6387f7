package analyzer

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// KeywordSet answers "which of these keywords occur in this text" in a single
// pass using an Aho-Corasick automaton. Matching is case-insensitive plain
// substring search; keywords are lowercased at construction.
//
// A KeywordSet is safe for concurrent use.
type KeywordSet struct {
	keywords []string
	matcher  *ahocorasick.Matcher
}

// NewKeywordSet builds a set from the given keywords, dropping blanks and duplicates.
func NewKeywordSet(keywords []string) *KeywordSet {
	seen := make(map[string]struct{}, len(keywords))
	uniq := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		uniq = append(uniq, kw)
	}

	ks := &KeywordSet{keywords: uniq}
	if len(uniq) > 0 {
		ks.matcher = ahocorasick.NewStringMatcher(uniq)
	}
	return ks
}

// Hits returns the distinct keywords found in text, in dictionary order.
func (k *KeywordSet) Hits(text string) []string {
	if k == nil || k.matcher == nil || text == "" {
		return nil
	}
	idx := k.matcher.MatchThreadSafe([]byte(strings.ToLower(text)))
	if len(idx) == 0 {
		return nil
	}

	found := make([]bool, len(k.keywords))
	for _, i := range idx {
		if i >= 0 && i < len(found) {
			found[i] = true
		}
	}
	hits := make([]string, 0, len(idx))
	for i, ok := range found {
		if ok {
			hits = append(hits, k.keywords[i])
		}
	}
	return hits
}

// Contains reports whether any keyword occurs in text.
func (k *KeywordSet) Contains(text string) bool {
	if k == nil || k.matcher == nil || text == "" {
		return false
	}
	return len(k.matcher.MatchThreadSafe([]byte(strings.ToLower(text)))) > 0
}

// Len is the number of distinct keywords in the set.
func (k *KeywordSet) Len() int {
	if k == nil {
		return 0
	}
	return len(k.keywords)
}
