// Package fetch defines the Port through which pages are rendered and
// captured, and the retry policy wrapped around it.
//
// A Port is a single live backend, usually a headless browser routed
// through Tor. Retrier turns its single-shot Render into a bounded retry
// loop with exponential backoff, while screenshots are attempted exactly
// once and never fail the caller.
//
// HTTPPort is a lightweight Port that downloads pages with a plain HTTP
// client instead of rendering them. It cannot take screenshots.
package fetch
