package utils

import "testing"

func TestProxiedQueryURL(t *testing.T) {
	cases := []struct {
		proxy    string
		target   string
		expected string
	}{
		{"", "https://api.carsxe.com/images?make=BMW", "https://api.carsxe.com/images?make=BMW"},
		{"https://proxy.local/fetch", "https://a.com/x?y=1&z=a b", "https://proxy.local/fetch?url=https%3A%2F%2Fa.com%2Fx%3Fy%3D1%26z%3Da%20b"},
		{"https://proxy.local/fetch?token=1", "https://a.com/", "https://proxy.local/fetch?token=1&url=https%3A%2F%2Fa.com%2F"},
	}
	for _, tc := range cases {
		if got := ProxiedQueryURL(tc.proxy, tc.target); got != tc.expected {
			t.Fatalf("ProxiedQueryURL(%q, %q) expected %s, got %s", tc.proxy, tc.target, tc.expected, got)
		}
	}
}

func TestProxiedPrefixURL(t *testing.T) {
	cases := []struct {
		proxy    string
		target   string
		expected string
	}{
		{"", "https://a.com/i.png", "https://a.com/i.png"},
		{"https://corsproxy.io", "https://a.com/i.png", "https://corsproxy.io/https%3A%2F%2Fa.com%2Fi.png"},
		{"https://corsproxy.io/?url=", "https://a.com/i.png", "https://corsproxy.io/?url=https%3A%2F%2Fa.com%2Fi.png"},
	}
	for _, tc := range cases {
		if got := ProxiedPrefixURL(tc.proxy, tc.target); got != tc.expected {
			t.Fatalf("ProxiedPrefixURL(%q, %q) expected %s, got %s", tc.proxy, tc.target, tc.expected, got)
		}
	}
}

func TestIsAllowedHost(t *testing.T) {
	allowed := []string{"api.carsxe.com"}
	cases := []struct {
		in       string
		expected bool
	}{
		{"https://api.carsxe.com/images?x=1", true},
		{"https://API.CARSXE.COM/images", true},
		{"https://api.carsxe.com:443/images", true},
		{"https://evil.com/?api.carsxe.com", false},
		{"file:///etc/passwd", false},
		{"not a url", false},
	}
	for _, tc := range cases {
		if got := IsAllowedHost(tc.in, allowed); got != tc.expected {
			t.Fatalf("IsAllowedHost(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	cases := []struct {
		in       string
		expected bool
	}{
		{"https://example.com/a.png", true},
		{"data:image/png;base64,iVBORw0KGgo=", true},
		{"example.com/a.png", false},
		{"", false},
		{"   ", false},
		{"just text", false},
	}
	for _, tc := range cases {
		if got := IsAbsoluteURL(tc.in); got != tc.expected {
			t.Fatalf("IsAbsoluteURL(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
	}
}
