package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid address", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("unexpected proxy address %q", client.ProxyAddress())
		}
		if client.ProxyURL() != "socks5://127.0.0.1:9050" {
			t.Errorf("unexpected proxy URL %q", client.ProxyURL())
		}
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient("localhost", 30*time.Second)
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{address: "127.0.0.1:9050", want: true},
		{address: "localhost:9150", want: true},
		{address: "[::1]:9050", want: true},
		{address: "127.0.0.1", want: false},
		{address: ":9050", want: false},
		{address: "127.0.0.1:0", want: false},
		{address: "127.0.0.1:65536", want: false},
		{address: "127.0.0.1:port", want: false},
		{address: "", want: false},
	}
	for _, tt := range tests {
		if got := IsValidProxyAddress(tt.address); got != tt.want {
			t.Errorf("IsValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:9050", 42*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	hc := client.NewHTTPClient()
	if hc.Timeout != 42*time.Second {
		t.Errorf("expected timeout 42s, got %v", hc.Timeout)
	}
	if hc.Jar == nil {
		t.Error("expected a cookie jar")
	}
	transport, ok := hc.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", hc.Transport)
	}
	if !transport.DisableCompression {
		t.Error("expected compression to be disabled")
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected certificate verification to be disabled")
	}

	via := make([]*http.Request, maxRedirects)
	if err := hc.CheckRedirect(nil, via); !errors.Is(err, http.ErrUseLastResponse) {
		t.Errorf("expected redirect limit, got %v", err)
	}
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		str     string
		wantErr error
	}{
		{status: ProxyStatusOK, str: "OK", wantErr: nil},
		{status: ProxyStatusWrongType, str: "wrong type (not Tor)", wantErr: ErrProxyNotTor},
		{status: ProxyStatusCannotConnect, str: "cannot connect", wantErr: ErrProxyCannotConnect},
		{status: ProxyStatusTimeout, str: "timeout", wantErr: ErrProxyTimeout},
	}
	for _, tt := range tests {
		if tt.status.String() != tt.str {
			t.Errorf("String() = %q, want %q", tt.status.String(), tt.str)
		}
		if !errors.Is(tt.status.Error(), tt.wantErr) {
			t.Errorf("Error() = %v, want %v", tt.status.Error(), tt.wantErr)
		}
	}
	if ProxyStatus(99).Error() == nil {
		t.Error("expected an error for an unknown status")
	}
}

// serveOnce accepts one connection on a local listener and hands it to handle.
func serveOnce(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	check := func(t *testing.T, addr string) ProxyStatus {
		t.Helper()
		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		return client.CheckConnection(context.Background())
	}

	t.Run("no listener", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		addr := listener.Addr().String()
		listener.Close()

		if got := check(t, addr); got != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", got)
		}
	})

	t.Run("http server", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = io.ReadFull(conn, make([]byte, 3))
			_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		})
		if got := check(t, addr); got != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", got)
		}
	})

	t.Run("socks5 requiring auth", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = io.ReadFull(conn, make([]byte, 3))
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})
		if got := check(t, addr); got != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", got)
		}
	})

	t.Run("tor-like socks5", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = io.ReadFull(conn, make([]byte, 3))
			_, _ = conn.Write([]byte{0x05, 0x00})
			// version, cmd, rsv, atyp, len, host, port
			_, _ = io.ReadFull(conn, make([]byte, 5+len(socks5ProbeHost)+2))
			// host unreachable is still a valid SOCKS5 reply
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		if got := check(t, addr); got != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", got)
		}
	})
}
