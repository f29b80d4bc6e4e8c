package analyzer

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Word boundaries that treat any Unicode letter or digit as a word
// character; regexp's \b only knows ASCII.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

// KeywordMatcher finds configured keywords in text.
// It is safe for concurrent use.
type KeywordMatcher struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewKeywordMatcher compiles a matcher for keywords. Blank keywords are
// ignored and duplicates that fold to the same text are kept once.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	m := &KeywordMatcher{}
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		folded := fold(kw)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		m.keywords = append(m.keywords, kw)
		m.patterns = append(m.patterns, regexp.MustCompile(wordStart+regexp.QuoteMeta(folded)+wordEnd))
	}
	return m
}

// Keywords returns the effective keyword list.
func (m *KeywordMatcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// Match returns the keywords that occur in text as whole words, in the
// order they were configured. It never returns nil.
func (m *KeywordMatcher) Match(text string) []string {
	found := []string{}
	if len(m.patterns) == 0 {
		return found
	}
	folded := fold(text)
	for i, pattern := range m.patterns {
		if pattern.MatchString(folded) {
			found = append(found, m.keywords[i])
		}
	}
	return found
}

// fold applies Unicode case folding. A Caser keeps state, so a new one is
// created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
