// Package main provides the entry point for the onioncrawl CLI.
//
// onioncrawl crawls Tor hidden services from a seed URL through a headless
// browser, records one JSON line per page (keywords, metadata, denylist
// verdict, screenshot) and summarizes past crawls.
//
// Usage:
//
//	onioncrawl crawl <seed-url>
//	onioncrawl report
//
// See --help for all available options.
package main

func main() {
	Execute()
}
