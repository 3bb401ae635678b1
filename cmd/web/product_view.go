package main

import (
	"net/url"
	"strconv"

	"finitefield.org/manga-web/internal/catalog"
	"finitefield.org/manga-web/internal/format"
)

// ProductView is the model of the product page.
type ProductView struct {
	Lang      string
	State     string
	Found     bool
	ID        string
	Product   catalog.Product
	Price     string
	Gallery   GalleryView
	CSRFToken string
}

// GalleryView is the model of the gallery fragment.
type GalleryView struct {
	Lang     string
	ID       string
	Title    string
	Current  string
	Index    int
	Total    int
	Multiple bool
	PrevHref string
	NextHref string
	PrevPage string
	NextPage string
	Thumbs   []GalleryThumb
}

// GalleryThumb is one thumbnail link.
type GalleryThumb struct {
	Index  int
	Src    string
	Active bool
	Href   string
	Page   string
}

func buildProductView(lang string, res catalog.DetailResult, imgIndex int) ProductView {
	view := ProductView{
		Lang:  lang,
		State: res.State.String(),
		Found: res.State == catalog.StateFound,
		ID:    res.ID,
	}
	if view.Found {
		view.Product = res.Product
		view.Price = format.Price(res.Product.Price, lang)
		view.Gallery = buildGalleryView(lang, res.Product, imgIndex)
	}
	return view
}

func buildGalleryView(lang string, p catalog.Product, index int) GalleryView {
	g := catalog.NewGallery(p.Images, index)
	view := GalleryView{
		Lang:     lang,
		ID:       p.ID,
		Title:    p.Title,
		Current:  g.Current(),
		Index:    g.Index,
		Total:    len(g.Images),
		Multiple: g.Multiple(),
		PrevHref: galleryHref(p.ID, g.Prev()),
		NextHref: galleryHref(p.ID, g.Next()),
		PrevPage: productImageHref(p.ID, g.Prev()),
		NextPage: productImageHref(p.ID, g.Next()),
	}
	for _, th := range g.Thumbs() {
		view.Thumbs = append(view.Thumbs, GalleryThumb{
			Index:  th.Index,
			Src:    th.Src,
			Active: th.Active,
			Href:   galleryHref(p.ID, th.Index),
			Page:   productImageHref(p.ID, th.Index),
		})
	}
	return view
}

// galleryHref is the fragment URL used by htmx; productImageHref is the
// full-page fallback for the same image.
func galleryHref(id string, index int) string {
	return "/product/gallery?" + imageQuery(id, index)
}

func productImageHref(id string, index int) string {
	return "/product?" + imageQuery(id, index)
}

func imageQuery(id string, index int) string {
	q := url.Values{}
	q.Set("id", id)
	q.Set("img", strconv.Itoa(index))
	return q.Encode()
}

// imageIndex reads ?img=; anything unparsable selects the first image.
func imageIndex(q url.Values) int {
	n, err := strconv.Atoi(q.Get("img"))
	if err != nil {
		return 0
	}
	return n
}
