// Package store persists crawl results.
//
// The JSON Lines file written by JSONLStore is the primary, append-only
// record: one Result per line, flushed to disk before Append returns, so a
// reader tailing the file only ever sees complete records. Index mirrors
// sessions and results into SQLite for querying past runs.
//
// Tee combines several Appenders; the pipeline writes to all of them.
package store
