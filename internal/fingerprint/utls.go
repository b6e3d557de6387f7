// Package fingerprint builds HTTP transports whose TLS ClientHello mimics a
// real browser, for providers that serve HTML to browsers only.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile maps a config value to a Profile. Empty means chrome.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProfileChrome, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return p, nil
	default:
		return "", fmt.Errorf("fingerprint: unknown profile %q", s)
	}
}

// Options tunes the transport.
type Options struct {
	// Proxy, when set, selects the proxy for each request.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper that performs the TLS handshake with
// the given profile. ProfileGo returns a plain clone of http.DefaultTransport.
//
// Browser profiles advertise only http/1.1 in ALPN because net/http cannot
// speak HTTP/2 over a connection it did not handshake itself.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		transport.Proxy = opts.Proxy
	}

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	newConn, err := helloFactory(p)
	if err != nil {
		return nil, err
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := newConn(tcpConn, &utls.Config{ServerName: host, InsecureSkipVerify: opts.InsecureSkipVerify})
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}
		return uConn, nil
	}

	return transport, nil
}

type connFactory func(net.Conn, *utls.Config) (*utls.UConn, error)

func helloFactory(p Profile) (connFactory, error) {
	var id utls.ClientHelloID
	switch p {
	case ProfileChrome:
		id = utls.HelloChrome_Auto
	case ProfileFirefox:
		id = utls.HelloFirefox_Auto
	case ProfileSafari:
		id = utls.HelloIOS_Auto
	case ProfileRandom:
		return func(c net.Conn, cfg *utls.Config) (*utls.UConn, error) {
			return utls.UClient(c, cfg, utls.HelloRandomizedNoALPN), nil
		}, nil
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	// Fail at construction rather than on the first dial.
	if _, err := http11Spec(id); err != nil {
		return nil, fmt.Errorf("fingerprint: load %s spec: %w", p, err)
	}

	return func(c net.Conn, cfg *utls.Config) (*utls.UConn, error) {
		// ApplyPreset takes ownership of the extensions, so every connection
		// needs a fresh spec.
		spec, err := http11Spec(id)
		if err != nil {
			return nil, err
		}
		uConn := utls.UClient(c, cfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			return nil, fmt.Errorf("fingerprint: apply %s preset: %w", p, err)
		}
		return uConn, nil
	}, nil
}

func http11Spec(id utls.ClientHelloID) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return spec, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return spec, nil
}
