package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake performed by CheckConnection.
const checkProxyTimeout = 5 * time.Second

// maxRedirects is the redirect limit of clients built by NewHTTPClient.
const maxRedirects = 10

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost is a well-formed but unused v3 address. The proxy only
	// has to answer the CONNECT request; whether the service exists is irrelevant.
	socks5ProbeHost = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	socks5ProbePort = 80
)

// Client routes connections through a Tor SOCKS5 proxy.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
	timeout      time.Duration
}

// NewClient creates a Client for the proxy at proxyAddress ("host:port").
// The timeout becomes the overall request timeout of HTTP clients built
// from this Client. NewClient does not contact the proxy.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !IsValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not use authentication.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// IsValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1..65535.
func IsValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// ProxyURL returns the proxy as a socks5:// URL, the form browsers expect.
func (c *Client) ProxyURL() string {
	return "socks5://" + c.proxyAddress
}

// CheckConnection performs a SOCKS5 greeting and a CONNECT request for an
// onion host. Any well-formed reply to the CONNECT, including a failure
// code, proves that a SOCKS5 proxy able to handle onion names is listening.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}
	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return readFailure(err)
	}
	if greeting[0] != socks5Version || greeting[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(socks5ProbeHost))}
	req = append(req, socks5ProbeHost...)
	req = append(req, byte(socks5ProbePort>>8), byte(socks5ProbePort&0xFF))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// readFailure classifies a failed read during the SOCKS5 handshake.
func readFailure(err error) ProxyStatus {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// NewHTTPClient returns an HTTP client whose connections all go through the
// Tor proxy. Host names are resolved by the proxy, never locally.
//
// Certificate verification is disabled because onion services commonly use
// self-signed certificates; the onion address itself authenticates the
// service. Compression is disabled so response sizes cannot leak content.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: c.dialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // onion services use self-signed certificates
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// dialContext dials through the proxy, honoring ctx when the dialer supports it.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}
	return c.dialer.Dial(network, address)
}
