package signaling

import (
	"net"
	"net/http"
	"strings"
)

// proxyIPHeaders are consulted in order when proxy headers are trusted.
var proxyIPHeaders = []string{"CF-Connecting-IP", "DO-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// remoteIP returns the address a downloader is recorded under. Without
// trustProxy it is the host part of the TCP peer address.
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range proxyIPHeaders {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			// X-Forwarded-For is "client, proxy1, proxy2".
			first, _, _ := strings.Cut(v, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil && !ip.IsUnspecified() {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
