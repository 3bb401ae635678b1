// Package seo builds the head metadata and schema.org payloads of storefront
// pages.
package seo

// OpenGraph is the og:* subset the layout renders.
type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	URL         string
	SiteName    string
}

// Meta is the per-page head metadata.
type Meta struct {
	Title       string
	Description string
	Canonical   string
	Robots      string
	OG          OpenGraph
	// JSONLD holds pre-encoded schema.org documents.
	JSONLD []string
}

// WithJSONLD appends the encoded form of each non-nil document.
func (m Meta) WithJSONLD(docs ...any) Meta {
	for _, d := range docs {
		if d == nil {
			continue
		}
		if s := JSON(d); s != "" {
			m.JSONLD = append(m.JSONLD, s)
		}
	}
	return m
}
