// Package model defines the records produced by a crawl.
//
//   - Result: the per-page record appended to the result store
//   - Metadata: title and meta tags extracted from a page
//   - Session: bookkeeping for one crawl run
//
// Result's JSON encoding is the contract with downstream readers of the
// results file, so its field names must not change.
package model
