// Package onion decides which URLs belong to the crawl and reduces them to a
// canonical form.
//
// A URL is in scope when its host ends in ".onion" and the label right before
// that suffix has the length of a v2 (16 characters) or v3 (56 characters)
// service identifier. Strict mode additionally requires the base32 alphabet
// and, for v3 identifiers, a valid embedded checksum.
//
// Normalize is total: it never fails and always returns a string, so callers
// can use its output directly as a visited-set key.
package onion
