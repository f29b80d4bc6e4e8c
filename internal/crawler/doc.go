// Package crawler walks onion services depth-first from a seed URL.
//
// # Components
//
//   - ExtractLinks: pulls in-scope, normalized, sorted links out of rendered HTML
//   - Session: the visited set and fetch budget of one crawl run
//   - Engine: the recursive traversal that fetches a page, hands it to the
//     page pipeline, waits politely and then descends into its links
//   - RandomDelay: the politeness pause between page fetches
//
// # Traversal
//
// Every URL is normalized before it is checked against the visited set, so
// equivalent spellings of a page are fetched at most once. Checking the set,
// inserting the URL and charging the budget happen as one step under the
// session lock. Links of a page are followed in lexicographic order, which
// makes the crawl order deterministic for a given set of pages.
//
// # Usage
//
//	session := crawler.NewSession(cfg.CrawlLimit)
//	engine := crawler.NewEngine(retrier, pipe,
//	    crawler.WithMaxDepth(cfg.MaxDepth),
//	    crawler.WithPauser(crawler.NewRandomDelay(cfg.DelayMin, cfg.DelayMax)),
//	)
//	stats, err := engine.Run(ctx, session, seed)
package crawler
