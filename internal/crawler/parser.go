package crawler

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/onioncrawl/internal/onion"
)

// ScopeFunc reports whether a URL may be crawled.
type ScopeFunc func(rawURL string) bool

// ExtractLinks returns the in-scope links of an HTML document.
//
// Every href of an anchor element is resolved against baseURL, stripped of
// its query and fragment, normalized and deduplicated. The result is sorted
// lexicographically. Malformed HTML or an unparsable baseURL never cause an
// error; they simply yield fewer links.
func ExtractLinks(body, baseURL string) []string {
	return ExtractLinksInScope(body, baseURL, onion.IsInScope)
}

// ExtractLinksInScope is ExtractLinks with a caller supplied scope check.
func ExtractLinksInScope(body, baseURL string, inScope ScopeFunc) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return []string{}
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return []string{}
	}

	seen := make(map[string]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link := resolveLink(base, getAttr(n, "href")); link != "" && inScope(link) {
				seen[onion.Normalize(link)] = struct{}{}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// resolveLink resolves href against base and drops its query and fragment.
// Pseudo-scheme links and bare fragments resolve to "".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.RawQuery = ""
	resolved.ForceQuery = false
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
