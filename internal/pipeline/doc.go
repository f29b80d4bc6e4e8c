// Package pipeline turns a fetched page into a stored Result.
//
// A Pipeline runs an ordered list of Steps over one page. Each step fills in
// part of the Result (matched keywords, metadata, denylist verdict,
// screenshot path). A failing step is logged and skipped; the remaining
// steps still run and the Result is recorded regardless.
package pipeline
