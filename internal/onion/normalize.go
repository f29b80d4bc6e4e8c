package onion

import (
	"net/url"
	"strings"
)

// Normalize returns the canonical form of rawURL used for deduplication:
// scheme and host are lower-cased, the query and fragment are removed and
// trailing slashes on the path are stripped.
//
// Normalize is idempotent. Input that does not parse as a URL is normalized
// textually with the same rules instead of being rejected.
func Normalize(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil {
		return normalizeText(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	if u.Opaque != "" {
		u.Opaque = strings.TrimRight(u.Opaque, "/")
	}
	return u.String()
}

// normalizeText applies the normalization rules without a URL parser.
func normalizeText(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}

	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return strings.TrimRight(raw, "/")
	}

	host, path, _ := strings.Cut(rest, "/")
	out := strings.ToLower(scheme) + "://" + strings.ToLower(host)
	if path = strings.TrimRight(path, "/"); path != "" {
		out += "/" + path
	}
	return out
}
