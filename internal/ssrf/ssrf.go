// Package ssrf validates outbound URLs and redirect hops against
// private/internal network ranges before the daemon's HTTP client is
// allowed to follow them.
//
// There is no third-party library in the dependency surface that does
// SSRF-aware redirect validation or private-IP classification; net.IP's
// own IsPrivate/IsLoopback/IsLinkLocalUnicast cover the IPv4/IPv6 range
// checks, and the policy itself is expressed as a net/http
// CheckRedirect hook, so this package is built directly on the standard
// library.
package ssrf

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fenwick-labs/agentd/pkg/metrics"
)

// blockedHosts are known internal hostnames that must never be reachable
// from a provider call, even when they don't resolve to a literal IP in
// the URL itself.
var blockedHosts = []string{
	"localhost",
	"metadata.google.internal",
	"metadata.aws.internal",
	"instance-data",
}

const maxRedirects = 10

// IsPrivateIP reports whether ip falls in a private, loopback,
// link-local, unspecified, broadcast, or CGNAT range.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		if v4.IsLoopback() || v4.IsPrivate() || v4.IsLinkLocalUnicast() ||
			v4.IsUnspecified() || v4.Equal(net.IPv4bcast) {
			return true
		}
		// CGNAT 100.64.0.0/10
		if v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127 {
			return true
		}
		return false
	}

	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	segments := ip.To16()
	if segments == nil {
		return false
	}
	first := uint16(segments[0])<<8 | uint16(segments[1])
	// fc00::/7 (unique local)
	if first&0xfe00 == 0xfc00 {
		return true
	}
	// fe80::/10 (link-local)
	if first&0xffc0 == 0xfe80 {
		return true
	}
	return false
}

func isBlockedHost(host string) (string, bool) {
	hostLower := strings.ToLower(host)
	for _, blocked := range blockedHosts {
		if hostLower == blocked || strings.HasSuffix(hostLower, "."+blocked) {
			return blocked, true
		}
	}
	return "", false
}

func hostIsPrivate(host string) (net.IP, bool) {
	candidate := host
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		candidate = host[1 : len(host)-1]
	}
	ip := net.ParseIP(candidate)
	if ip == nil {
		return nil, false
	}
	return ip, IsPrivateIP(ip)
}

// ValidateURL returns an error if rawURL points at a blocked internal
// hostname or a private/internal IP address.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("invalid URL: no host")
	}

	if blocked, ok := isBlockedHost(host); ok {
		metrics.DefaultRegistry().SSRF().RejectionsTotal.WithLabelValues("blocked_host").Inc()
		return fmt.Errorf("blocked internal hostname: %s (matches %s)", host, blocked)
	}

	if ip, private := hostIsPrivate(host); private {
		metrics.DefaultRegistry().SSRF().RejectionsTotal.WithLabelValues("private_ip").Inc()
		return fmt.Errorf("blocked private IP: %s", ip)
	}

	return nil
}

// NewClient builds an *http.Client whose redirect policy validates every
// 3xx hop against the same blocked-host and private-IP rules as
// ValidateURL, capped at maxRedirects. This stops an attacker-controlled
// URL from returning "302 -> http://127.0.0.1/...". Only the literal
// host in each hop is checked: hostnames are not resolved, so a public
// name whose DNS record points at a private address is not caught, and
// the initial request's URL is not checked by the client itself.
//
// Providers that intentionally target localhost (e.g. a local model
// runtime) must not use this client.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			host := req.URL.Hostname()
			if blocked, ok := isBlockedHost(host); ok {
				metrics.DefaultRegistry().SSRF().RejectionsTotal.WithLabelValues("redirect_blocked_host").Inc()
				return fmt.Errorf("SSRF: redirect to blocked host %s (matches %s): %w", host, blocked, os.ErrPermission)
			}
			if ip, private := hostIsPrivate(host); private {
				metrics.DefaultRegistry().SSRF().RejectionsTotal.WithLabelValues("redirect_private_ip").Inc()
				return fmt.Errorf("SSRF: redirect to private IP %s: %w", ip, os.ErrPermission)
			}
			return nil
		},
	}
}
