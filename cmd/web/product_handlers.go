package main

import (
	"net/http"

	"finitefield.org/manga-web/internal/catalog"
	"finitefield.org/manga-web/internal/handlers"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/seo"
)

// ProductHandler renders the product page. Missing ids and an unloaded
// catalog are informational (200); an unknown id is a 404 with the same body.
func (a *app) ProductHandler(w http.ResponseWriter, r *http.Request) {
	l := a.layout(r)
	q := r.URL.Query()
	res := catalog.Detail(a.catalog, q)
	view := buildProductView(l.Lang, res, imageIndex(q))
	view.CSRFToken = l.CSRFToken

	title, leaf := "", ""
	status := http.StatusOK
	switch res.State {
	case catalog.StateFound:
		title, leaf = res.Product.Title, res.Product.Title
	case catalog.StateNoID:
		title = a.t(r, "product.not_specified")
	case catalog.StateUnavailable:
		title = a.t(r, "product.unavailable")
	case catalog.StateNotFound:
		title = a.bundle.Tf(l.Lang, "product.not_found", "id", res.ID)
		status = http.StatusNotFound
	}

	vm := handlers.NewPageData(l, title, leaf)
	vm.SEO.Title = a.pageTitle(r, title)
	if view.Found {
		p := res.Product
		vm.SEO.Description = p.Excerpt
		vm.SEO.Canonical = absoluteURL(r)
		vm.SEO.OG.URL = vm.SEO.Canonical
		vm.SEO.OG.Type = "product"
		vm.SEO.OG.Image = p.Image()
		vm.SEO.OG.Description = p.Excerpt
		vm.SEO = vm.SEO.WithJSONLD(seo.Product(seo.ProductInfo{
			SKU:         p.ID,
			Name:        p.Title,
			Description: p.Excerpt,
			Author:      p.Author,
			URL:         productHref(p.ID),
			Images:      p.Images,
			Price:       p.Price,
		}), a.breadcrumbJSONLD(r, vm.Breadcrumbs))
	} else {
		vm.SEO.Robots = "noindex"
	}
	vm.Product = view
	a.renderPageStatus(w, r, status, "product", vm)
}

// ProductGalleryFrag renders the gallery for ?id=&img=. Gallery requests for
// products that cannot be shown answer 404 with an empty body.
func (a *app) ProductGalleryFrag(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := catalog.Detail(a.catalog, q)
	if res.State != catalog.StateFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	a.renderTemplate(w, r, "frag_product_gallery", buildGalleryView(mw.Lang(r), res.Product, imageIndex(q)))
}
