// Package report summarizes the results of a crawl.
//
// NewSummary condenses a slice of Results (and optionally the session they
// belong to) into counts, keyword hits and a per-page listing. Writers
// render a Summary as plain text for the terminal, as Markdown for sharing,
// or as JSON for other tools.
package report
