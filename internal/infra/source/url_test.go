package source

import (
	"errors"
	"net"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		deny    bool
		wantErr bool
	}{
		{"valid https", "https://example.com/path", false, false},
		{"valid http", "http://example.com", false, false},
		{"ftp scheme", "ftp://example.com", false, true},
		{"file scheme", "file:///etc/passwd", false, true},
		{"empty hostname", "http://", false, true},
		{"loopback denied", "http://127.0.0.1/admin", true, true},
		{"loopback allowed when check off", "http://127.0.0.1/admin", false, false},
		{"localhost denied", "http://localhost:8080", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url, tt.deny)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateURL(%q, %v) error = %v, wantErr %v", tt.url, tt.deny, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsafeURL) {
				t.Errorf("expected ErrUnsafeURL, got %v", err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"fc00::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base  string
		parts []string
		want  string
	}{
		{"http://a.example", []string{"b"}, "http://a.example/b"},
		{"http://a.example/", []string{"/b/", "c"}, "http://a.example/b/c"},
		{"http://a.example/base", []string{"x", "y"}, "http://a.example/base/x/y"},
	}

	for _, tt := range tests {
		if got := joinURL(tt.base, tt.parts...); got != tt.want {
			t.Errorf("joinURL(%q, %v) = %q, want %q", tt.base, tt.parts, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"42", 42},
		{"1,234", 1234},
		{"1.2K", 1200},
		{"12.5k", 12500},
		{"3M", 3000000},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := parseCount(tt.in); got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
