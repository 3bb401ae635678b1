package middleware

import (
	"net/http"
)

// TabIDHeader carries the per-tab id generated by app.js. WebSocket
// handshakes cannot set headers, so the "tab" query parameter is accepted too.
const TabIDHeader = "X-Tab-ID"

const maxTabIDLength = 64

// Tab stores the sanitized tab id in the request context.
func Tab(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TabIDHeader)
		if id == "" {
			id = r.URL.Query().Get("tab")
		}
		if id = sanitizeTabID(id); id != "" {
			r = r.WithContext(WithTabID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func sanitizeTabID(raw string) string {
	b := make([]byte, 0, len(raw))
	for i := 0; i < len(raw) && len(b) < maxTabIDLength; i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b = append(b, c)
		}
	}
	return string(b)
}
