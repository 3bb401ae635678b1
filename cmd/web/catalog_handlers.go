package main

import (
	"net/http"

	"finitefield.org/manga-web/internal/catalog"
	"finitefield.org/manga-web/internal/handlers"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/seo"
)

const featuredCount = 4

// HomeView is the model of the landing page.
type HomeView struct {
	Lang     string
	Featured []ProductCard
}

// HomeHandler renders the landing page with the head of the catalog.
func (a *app) HomeHandler(w http.ResponseWriter, r *http.Request) {
	l := a.layout(r)
	vm := handlers.NewPageData(l, a.t(r, "home.title"), "")
	vm.SEO.Title = a.pageTitle(r, "")
	vm.SEO.Description = a.t(r, "home.lead")
	vm.SEO.Canonical = absoluteURL(r)
	vm.SEO.OG.URL = vm.SEO.Canonical
	vm.SEO.OG.SiteName = a.t(r, "site.name")
	vm.SEO = vm.SEO.WithJSONLD(seo.WebSite(a.t(r, "site.name"), "", "/catalog?q="))
	vm.Home = HomeView{Lang: l.Lang, Featured: productCards(a.catalog.Featured(featuredCount), l.Lang)}
	a.renderPage(w, r, "home", vm)
}

// CatalogHandler renders the catalog page for the filter in the query.
func (a *app) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	l := a.layout(r)
	view := buildCatalogView(l.Lang, a.catalog, catalog.ParseFilter(r.URL.Query()))
	view.CSRFToken = l.CSRFToken

	title := a.t(r, "catalog.title")
	vm := handlers.NewPageData(l, title, "")
	vm.SEO.Title = a.pageTitle(r, title)
	vm.SEO.Canonical = absoluteURL(r)
	vm.SEO.OG.URL = vm.SEO.Canonical
	if view.Filtered {
		vm.SEO.Robots = "noindex, follow"
	}
	vm.Catalog = view
	a.renderPage(w, r, "catalog", vm)
}

// CatalogGridFrag renders the grid and pushes the canonical filter URL so
// back/forward restore the same view.
func (a *app) CatalogGridFrag(w http.ResponseWriter, r *http.Request) {
	f := catalog.ParseFilter(r.URL.Query())
	view := buildCatalogView(mw.Lang(r), a.catalog, f)
	view.CSRFToken = mw.CSRFToken(r)
	w.Header().Set("HX-Push-Url", catalogURL(f))
	a.renderTemplate(w, r, "frag_catalog_grid", view)
}

// NotFoundHandler renders the shared 404 page.
func (a *app) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	l := a.layout(r)
	title := a.t(r, "error.not_found")
	vm := handlers.NewPageData(l, title, "")
	vm.SEO.Title = a.pageTitle(r, title)
	vm.SEO.Robots = "noindex"
	a.renderPageStatus(w, r, http.StatusNotFound, "notfound", vm)
}
