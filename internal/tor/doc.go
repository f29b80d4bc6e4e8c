// Package tor connects the crawler to the Tor network.
//
// A Client verifies that a SOCKS5 proxy really is a Tor SOCKS port before a
// crawl begins and builds HTTP clients that resolve and dial every host
// through that proxy. EmbeddedTor launches a private Tor daemon with
// tornago for hosts without a system Tor service.
//
// Components receive a Client through their constructors; the package keeps
// no global state.
package tor
