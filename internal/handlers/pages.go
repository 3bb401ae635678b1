// Package handlers holds the view models shared by every page template.
package handlers

import (
	"finitefield.org/manga-web/internal/nav"
	"finitefield.org/manga-web/internal/seo"
	"finitefield.org/manga-web/internal/ui"
)

// PageData is the view model of a full page rendered inside the layout.
type PageData struct {
	Title     string
	Lang      string
	SEO       seo.Meta
	Analytics Analytics

	Path        string
	Nav         []nav.RenderedItem
	Breadcrumbs []nav.Crumb
	CSRFToken   string
	CartBadge   ui.Badge
	Dev         bool

	// Per-page payloads; templates read the one matching the page.
	Home    any
	Catalog any
	Product any
	Cart    any
}

// Layout carries the request-scoped values every page needs.
type Layout struct {
	Lang      string
	Path      string
	CSRFToken string
	CartCount int
	Analytics Analytics
	Dev       bool
}

// NewPageData fills the layout fields. leaf, when set, becomes the last
// breadcrumb.
func NewPageData(l Layout, title, leaf string) PageData {
	return PageData{
		Title:       title,
		Lang:        l.Lang,
		SEO:         seo.Meta{Title: title, OG: seo.OpenGraph{Title: title, Type: "website"}},
		Analytics:   l.Analytics,
		Path:        l.Path,
		Nav:         nav.Build(l.Path),
		Breadcrumbs: nav.Breadcrumbs(l.Path, leaf),
		CSRFToken:   l.CSRFToken,
		CartBadge:   ui.NewBadge(l.CartCount),
		Dev:         l.Dev,
	}
}
