package main

import (
	"net/http"
	"net/url"

	"finitefield.org/manga-web/internal/cart"
	"finitefield.org/manga-web/internal/format"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/ui"
)

// CartView is the model of the cart page and its table fragment. Totals are
// derived from the lines on every build.
type CartView struct {
	Lang       string
	Lines      []CartLineView
	Empty      bool
	Count      int
	CountLabel string
	Total      string
	CSRFToken  string
}

// CartLineView is one table row.
type CartLineView struct {
	ID           string
	Title        string
	Author       string
	Img          string
	Price        string
	Qty          int
	Subtotal     string
	Href         string
	QtyAction    string
	RemoveAction string
}

func buildCartView(lang, csrf string, lines cart.Lines) CartView {
	view := CartView{
		Lang:       lang,
		Empty:      len(lines) == 0,
		Count:      lines.Count(),
		CountLabel: format.Count(lines.Count(), lang),
		Total:      format.Price(lines.Total(), lang),
		CSRFToken:  csrf,
		Lines:      make([]CartLineView, 0, len(lines)),
	}
	for _, l := range lines {
		esc := url.PathEscape(l.ID)
		view.Lines = append(view.Lines, CartLineView{
			ID:           l.ID,
			Title:        l.Title,
			Author:       l.Author,
			Img:          l.Img,
			Price:        format.Price(l.Price, lang),
			Qty:          l.Qty,
			Subtotal:     format.Price(l.Subtotal(), lang),
			Href:         productHref(l.ID),
			QtyAction:    "/cart/items/" + esc + "/qty",
			RemoveAction: "/cart/items/" + esc + "/remove",
		})
	}
	return view
}

// BadgeView is the model of the header cart counter.
type BadgeView struct {
	ui.Badge
	Lang string
}

// cartKey is the backend key of the session cart.
func (a *app) cartKey(r *http.Request) string {
	return a.cfg.Cart.Key + ":" + mw.GetSession(r).EnsureCartID()
}

// cartFor returns the store of the session cart.
func (a *app) cartFor(r *http.Request) *cart.Store {
	return a.carts.For(a.cartKey(r))
}
