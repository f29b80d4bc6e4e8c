package tor

import "errors"

// Tor connectivity errors.
var (
	// ErrProxyNotTor is returned when the proxy answers but does not behave
	// like an unauthenticated SOCKS5 proxy.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established, usually because Tor is not running.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrEmbeddedNotRunning is returned when a client is requested from an
	// embedded daemon that has not been started.
	ErrEmbeddedNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the outcome of CheckConnection.
type ProxyStatus int

const (
	// ProxyStatusOK indicates a working Tor SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType indicates something other than Tor answered.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect indicates the TCP connection failed.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout indicates the handshake timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not Tor)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotTor
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
