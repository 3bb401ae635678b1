package main

import (
	"encoding/json"
	"net/url"

	"finitefield.org/manga-web/internal/catalog"
	"finitefield.org/manga-web/internal/format"
)

// CatalogView is the model of the catalog page and its grid fragment.
type CatalogView struct {
	Lang        string
	Filter      catalog.Filter
	Query       string
	Genres      []CatalogOption
	Sorts       []CatalogOption
	Cards       []ProductCard
	Count       int
	Filtered    bool
	Unavailable bool
	CSRFToken   string
}

// CatalogOption is an entry of the genre or sort select.
type CatalogOption struct {
	Value    string
	LabelKey string
	Label    string
	Selected bool
}

// ProductCard is one product tile.
type ProductCard struct {
	ID      string
	Title   string
	Author  string
	Price   string
	Image   string
	Images  string // JSON array for hover cycling
	Excerpt string
	Href    string
}

func buildCatalogView(lang string, c *catalog.Catalog, f catalog.Filter) CatalogView {
	f = catalog.ParseFilter(f.Values())
	view := CatalogView{
		Lang:        lang,
		Filter:      f,
		Query:       f.Values().Encode(),
		Filtered:    !f.IsZero(),
		Unavailable: c == nil,
	}
	view.Genres = append(view.Genres, CatalogOption{Value: catalog.GenreAll, LabelKey: "catalog.genre_all", Selected: f.Genre == catalog.GenreAll})
	for _, g := range c.Genres() {
		view.Genres = append(view.Genres, CatalogOption{Value: g, Label: g, Selected: f.Genre == g})
	}
	for _, s := range catalog.SortModes {
		view.Sorts = append(view.Sorts, CatalogOption{Value: s, LabelKey: "sort." + s, Selected: f.Sort == s})
	}
	products := c.Query(f)
	view.Cards = productCards(products, lang)
	view.Count = len(view.Cards)
	return view
}

func productCards(products []catalog.Product, lang string) []ProductCard {
	cards := make([]ProductCard, 0, len(products))
	for _, p := range products {
		images, _ := json.Marshal(p.Images)
		cards = append(cards, ProductCard{
			ID:      p.ID,
			Title:   p.Title,
			Author:  p.Author,
			Price:   format.Price(p.Price, lang),
			Image:   p.Image(),
			Images:  string(images),
			Excerpt: p.Excerpt,
			Href:    productHref(p.ID),
		})
	}
	return cards
}

func catalogURL(f catalog.Filter) string {
	if q := f.Values().Encode(); q != "" {
		return "/catalog?" + q
	}
	return "/catalog"
}

func productHref(id string) string {
	return "/product?id=" + url.QueryEscape(id)
}
