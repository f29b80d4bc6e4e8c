package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/nao1215/onioncrawl/internal/model"
	"github.com/nao1215/onioncrawl/internal/onion"
)

// KeywordCount is the number of pages a keyword was found on.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Pages   int    `json:"pages"`
}

// Summary is an aggregate view of a result set.
type Summary struct {
	// Session is the crawl session the results belong to, when known.
	Session *model.Session `json:"session,omitempty"`

	// Pages is the number of results.
	Pages int `json:"pages"`

	// Hosts is the number of distinct onion hosts among the results.
	Hosts int `json:"hosts"`

	// Blacklisted lists the URLs of denylisted pages.
	Blacklisted []string `json:"blacklisted"`

	// Screenshots is the number of pages with a screenshot.
	Screenshots int `json:"screenshots"`

	// Keywords is sorted by page count, then keyword.
	Keywords []KeywordCount `json:"keywords"`

	// First and Last bound the result timestamps.
	First time.Time `json:"first,omitzero"`
	Last  time.Time `json:"last,omitzero"`

	// Results are the underlying records in store order.
	Results []model.Result `json:"results"`
}

// NewSummary aggregates results. session may be nil.
func NewSummary(results []model.Result, session *model.Session) *Summary {
	s := &Summary{
		Session:     session,
		Pages:       len(results),
		Blacklisted: []string{},
		Keywords:    []KeywordCount{},
		Results:     results,
	}

	hosts := make(map[string]struct{})
	hits := make(map[string]int)
	for _, r := range results {
		hosts[onion.Host(r.URL)] = struct{}{}
		if r.Blacklisted {
			s.Blacklisted = append(s.Blacklisted, r.URL)
		}
		if r.ScreenshotPath != "" {
			s.Screenshots++
		}
		for _, k := range r.KeywordsFound {
			hits[k]++
		}
		if s.First.IsZero() || r.Timestamp.Before(s.First) {
			s.First = r.Timestamp
		}
		if r.Timestamp.After(s.Last) {
			s.Last = r.Timestamp
		}
	}
	s.Hosts = len(hosts)

	for k, n := range hits {
		s.Keywords = append(s.Keywords, KeywordCount{Keyword: k, Pages: n})
	}
	slices.SortFunc(s.Keywords, func(a, b KeywordCount) int {
		if c := cmp.Compare(b.Pages, a.Pages); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
	return s
}

// HasAlerts reports whether any page was denylisted or matched a keyword.
func (s *Summary) HasAlerts() bool {
	return len(s.Blacklisted) > 0 || len(s.Keywords) > 0
}
