package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

var headers = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP returns the client address for r.
func GetIP(r *http.Request) string {
	for _, name := range headers {
		value := r.Header.Get(name)
		if value == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			value, _, _ = strings.Cut(value, ",")
		}
		if ip, ok := parse(value); ok {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip, ok := parse(host); ok {
		return ip
	}
	return r.RemoteAddr
}

func parse(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil || addr.IsUnspecified() {
		return "", false
	}
	return addr.Unmap().String(), true
}
