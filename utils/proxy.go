package utils

import (
	"net/url"
	"strings"
)

// ProxiedQueryURL routes target through a forwarding proxy that takes the
// destination in its "url" query parameter. An empty proxy returns target.
func ProxiedQueryURL(proxy, target string) string {
	proxy = strings.TrimSpace(proxy)
	if proxy == "" {
		return target
	}
	sep := "?"
	if strings.Contains(proxy, "?") {
		sep = "&"
	}
	return proxy + sep + "url=" + EncodeURIComponent(target)
}

// ProxiedPrefixURL routes target through a proxy that expects the escaped
// destination appended to its own URL.
func ProxiedPrefixURL(proxy, target string) string {
	proxy = strings.TrimSpace(proxy)
	if proxy == "" {
		return target
	}
	if !strings.HasSuffix(proxy, "/") && !strings.HasSuffix(proxy, "=") {
		proxy += "/"
	}
	return proxy + EncodeURIComponent(target)
}

// IsAllowedHost reports whether raw is an http(s) URL whose host is in allowed.
func IsAllowedHost(raw string, allowed []string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), host) {
			return true
		}
	}
	return false
}
