package source

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrUnsafeURL marks URLs rejected by the SSRF validation rules.
var ErrUnsafeURL = errors.New("unsafe URL")

// validateURL checks a URL before an upstream request is made. It rejects
// non-http(s) schemes and, when denyPrivateIPs is set, hostnames resolving
// to private, loopback, or link-local addresses. Resolving up front means an
// attacker-controlled DNS name pointing at the internal network is caught
// before the request leaves the process.
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", ErrUnsafeURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed (only http/https)", ErrUnsafeURL, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", ErrUnsafeURL)
	}

	if !denyPrivateIPs {
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", ErrUnsafeURL, hostname, err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname %q resolves to private IP %s", ErrUnsafeURL, hostname, ip)
		}
	}

	return nil
}

// isPrivateIP reports whether the address is loopback, RFC 1918/4193
// private, or link-local. Both IPv4 and IPv6 ranges are covered.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// joinURL appends a path to the base URL, tolerating trailing and leading
// slashes on either side.
func joinURL(base string, parts ...string) string {
	b := strings.TrimRight(base, "/")
	for _, p := range parts {
		b += "/" + strings.Trim(p, "/")
	}
	return b
}
