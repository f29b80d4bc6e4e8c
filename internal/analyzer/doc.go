// Package analyzer extracts what the crawler records about a page: the
// configured keywords that occur in its text and its title and meta tags.
//
// HTML is parsed with goquery. Keyword comparison is case-insensitive using
// Unicode case folding and only whole words match, so "bitcoin" matches
// "Bitcoin market" but not "bitcoins".
package analyzer
