package model

import "time"

// Metadata holds the document-level metadata of a page.
type Metadata struct {
	// Title is the text of the page's <title> element, or "" when absent.
	Title string `json:"title"`

	// Meta maps lower-cased <meta name> attributes to their content.
	// When a name repeats, the last occurrence in document order wins.
	Meta map[string]string `json:"meta"`
}

// NewMetadata returns an empty Metadata whose Meta map is non-nil.
func NewMetadata() Metadata {
	return Metadata{Meta: make(map[string]string)}
}

// Result is the analysis record of one successfully fetched page.
type Result struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// KeywordsFound lists the configured keywords that occur in the page as
	// whole words, compared case-insensitively. Never nil.
	KeywordsFound []string `json:"keywords_found"`

	// Metadata is the page title and meta tags.
	Metadata Metadata `json:"metadata"`

	// Blacklisted is true when the page's host matches the denylist.
	Blacklisted bool `json:"blacklisted"`

	// ScreenshotPath is the path of the captured screenshot, or "" when no
	// screenshot could be taken.
	ScreenshotPath string `json:"screenshot_path"`

	// Timestamp is the UTC time at which the result was produced.
	Timestamp time.Time `json:"timestamp"`
}

// NewResult returns a Result for pageURL stamped with now in UTC. All
// collection fields are initialized so the record encodes without nulls.
func NewResult(pageURL string, now time.Time) *Result {
	return &Result{
		URL:           pageURL,
		KeywordsFound: []string{},
		Metadata:      NewMetadata(),
		Timestamp:     now.UTC(),
	}
}
