package catalog

import (
	"net/url"
	"strings"
)

// IDParams are the query parameters accepted as a product identifier, in priority order.
var IDParams = []string{"id", "product", "p"}

const maxIDLength = 64

// State is the outcome of resolving a product detail request.
type State int

const (
	StateFound State = iota
	StateNoID
	StateUnavailable
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateFound:
		return "found"
	case StateNoID:
		return "no-id"
	case StateUnavailable:
		return "unavailable"
	case StateNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// DetailResult carries the resolved id and, when found, the product.
type DetailResult struct {
	State   State
	ID      string
	Product Product
}

// SanitizeID keeps [A-Za-z0-9_-] and truncates to 64 characters.
func SanitizeID(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if b.Len() >= maxIDLength {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveID returns the first non-empty sanitized identifier among IDParams.
func ResolveID(q url.Values) (string, bool) {
	for _, name := range IDParams {
		if id := SanitizeID(q.Get(name)); id != "" {
			return id, true
		}
	}
	return "", false
}

// Detail resolves the product for a detail page. The id is checked before the
// catalog so a bare link always reports the missing id first.
func Detail(c *Catalog, q url.Values) DetailResult {
	id, ok := ResolveID(q)
	if !ok {
		return DetailResult{State: StateNoID}
	}
	if c == nil {
		return DetailResult{State: StateUnavailable, ID: id}
	}
	p, found := c.Lookup(id)
	if !found {
		return DetailResult{State: StateNotFound, ID: id}
	}
	return DetailResult{State: StateFound, ID: id, Product: p}
}
