package onion

import (
	"net/url"
	"strings"
)

const (
	// Suffix is the top-level pseudo-domain of Tor onion services.
	Suffix = ".onion"

	// V2Length is the length of a v2 service label. V2 services were retired
	// by the Tor network in 2021 but their addresses are still accepted.
	V2Length = 16

	// V3Length is the length of a v3 service label.
	V3Length = 56
)

// Version identifies the onion service generation an address belongs to.
type Version int

const (
	// VersionUnknown means the label length matches no known generation.
	VersionUnknown Version = iota
	// V2 is the legacy 16 character address.
	V2
	// V3 is the current 56 character address.
	V3
)

// String returns a human-readable name for the version.
func (v Version) String() string {
	switch v {
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// LabelVersion reports the version implied by the length of a service label.
func LabelVersion(label string) Version {
	switch len(label) {
	case V2Length:
		return V2
	case V3Length:
		return V3
	default:
		return VersionUnknown
	}
}

// Host returns the lower-cased host of rawURL without any port.
// It returns an empty string when rawURL cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ServiceLabel returns the label immediately preceding the ".onion" suffix of
// host, and false when host is not an onion host.
func ServiceLabel(host string) (string, bool) {
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, Suffix) {
		return "", false
	}
	rest := strings.TrimSuffix(host, Suffix)
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		rest = rest[i+1:]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// IsInScope reports whether rawURL is an http or https URL on an onion
// service with a v2 or v3 label length. It never
// panics; unparsable input is simply out of scope.
func IsInScope(rawURL string) bool {
	label, ok := webServiceLabel(rawURL)
	if !ok {
		return false
	}
	return LabelVersion(label) != VersionUnknown
}

// IsInScopeStrict is IsInScope plus alphabet and checksum validation of the
// service label.
func IsInScopeStrict(rawURL string) bool {
	label, ok := webServiceLabel(rawURL)
	if !ok || !isBase32(label) {
		return false
	}
	switch LabelVersion(label) {
	case V2:
		return true
	case V3:
		return VerifyV3Checksum(label + Suffix)
	default:
		return false
	}
}

// webServiceLabel returns the service label of an http or https URL on an
// onion host.
func webServiceLabel(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	return ServiceLabel(u.Hostname())
}

// isBase32 reports whether s only contains the lowercase RFC 4648 base32
// alphabet used by onion addresses.
func isBase32(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			return false
		}
	}
	return s != ""
}
