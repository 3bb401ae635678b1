package main

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/manga-web/internal/cart"
	"finitefield.org/manga-web/internal/catalog"
	"finitefield.org/manga-web/internal/handlers"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/observability"
	"finitefield.org/manga-web/internal/ui"
)

// htmx events emitted by cart mutations.
const (
	eventCartChanged = "cart:changed"
	eventCartBadge   = "cart:badge"
)

const addToastTimeoutMs = 1800

// CartHandler renders the cart page.
func (a *app) CartHandler(w http.ResponseWriter, r *http.Request) {
	l := a.layout(r)
	view := buildCartView(l.Lang, l.CSRFToken, a.cartFor(r).Load(r.Context()))

	title := a.t(r, "cart.title")
	vm := handlers.NewPageData(l, title, "")
	vm.SEO.Title = a.pageTitle(r, title)
	vm.SEO.Robots = "noindex"
	vm.Cart = view
	a.renderPage(w, r, "cart", vm)
}

// CartTableFrag renders the line items table.
func (a *app) CartTableFrag(w http.ResponseWriter, r *http.Request) {
	a.renderCartTable(w, r, a.cartFor(r).Load(r.Context()))
}

// CartBadgeFrag renders the header counter.
func (a *app) CartBadgeFrag(w http.ResponseWriter, r *http.Request) {
	count := a.cartFor(r).ItemCount(r.Context())
	a.renderTemplate(w, r, "frag_cart_badge", BadgeView{Badge: ui.NewBadge(count), Lang: mw.Lang(r)})
}

// CartAddHandler adds a product. htmx callers get 204 plus events; plain form
// posts are redirected back.
func (a *app) CartAddHandler(w http.ResponseWriter, r *http.Request) {
	id := catalog.SanitizeID(r.PostFormValue("id"))
	if id == "" {
		a.rejectCartInput(w, r, "product.not_specified", nil)
		return
	}
	qty := 1
	if raw := strings.TrimSpace(r.PostFormValue("qty")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			qty = n
		}
	}
	lines := a.cartFor(r).Add(a.originCtx(r), id, qty)

	title := id
	if i := lines.Index(id); i >= 0 {
		title = lines[i].Title
	}
	a.triggerCartEvents(w, lines)
	ui.ShowToast(w, ui.NewToast(a.bundle.Tf(mw.Lang(r), "toast.added", "title", title), ui.ToneSuccess, addToastTimeoutMs))

	if !mw.IsHTMX(r.Context()) {
		http.Redirect(w, r, redirectTarget(r), http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CartQuantityHandler sets a line quantity. Invalid input leaves the cart
// unchanged and re-renders the last valid value with an error toast.
func (a *app) CartQuantityHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	qty := parseQuantity(r.PostFormValue("qty"))
	store := a.cartFor(r)
	lines, ok := store.SetQuantity(a.originCtx(r), id, qty)
	if !ok {
		a.rejectCartInput(w, r, "toast.invalid_qty", lines)
		return
	}
	a.triggerCartEvents(w, lines)
	a.respondCart(w, r, lines)
}

// CartRemoveHandler removes a line.
func (a *app) CartRemoveHandler(w http.ResponseWriter, r *http.Request) {
	lines := a.cartFor(r).Remove(a.originCtx(r), chi.URLParam(r, "id"))
	a.triggerCartEvents(w, lines)
	ui.ShowToast(w, ui.NewToast(a.t(r, "toast.removed"), ui.ToneInfo, 0))
	a.respondCart(w, r, lines)
}

// CartClearHandler empties the cart.
func (a *app) CartClearHandler(w http.ResponseWriter, r *http.Request) {
	a.cartFor(r).Clear(a.originCtx(r))
	a.triggerCartEvents(w, cart.Lines{})
	ui.ShowToast(w, ui.NewToast(a.t(r, "toast.cleared"), ui.ToneInfo, 0))
	a.respondCart(w, r, cart.Lines{})
}

func (a *app) rejectCartInput(w http.ResponseWriter, r *http.Request, msgKey string, lines cart.Lines) {
	observability.FromContext(r.Context()).Debug("cart input rejected",
		zap.String("path", r.URL.Path),
		zap.String("qty", r.PostFormValue("qty")),
	)
	ui.ShowToast(w, ui.NewToast(a.t(r, msgKey), ui.ToneError, 0))
	if lines == nil {
		lines = a.cartFor(r).Load(r.Context())
	}
	if !mw.IsHTMX(r.Context()) {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}
	a.renderCartTable(w, r, lines)
}

func (a *app) respondCart(w http.ResponseWriter, r *http.Request, lines cart.Lines) {
	if !mw.IsHTMX(r.Context()) {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}
	a.renderCartTable(w, r, lines)
}

func (a *app) renderCartTable(w http.ResponseWriter, r *http.Request, lines cart.Lines) {
	a.renderTemplate(w, r, "frag_cart_table", buildCartView(mw.Lang(r), mw.CSRFToken(r), lines))
}

func (a *app) triggerCartEvents(w http.ResponseWriter, lines cart.Lines) {
	count := lines.Count()
	ui.Trigger(w, map[string]any{
		eventCartChanged: map[string]int{"count": count},
		eventCartBadge:   map[string]int{"count": count},
	})
}

// originCtx tags backend writes with the requesting tab so its own change
// stream skips them.
func (a *app) originCtx(r *http.Request) context.Context {
	return cart.WithOrigin(r.Context(), mw.TabID(r.Context()))
}

// parseQuantity returns NaN for anything that is not a number.
func parseQuantity(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// redirectTarget sends plain form posts back to a same-site referer.
func redirectTarget(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return "/cart"
	}
	u, err := r.URL.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/cart"
	}
	return u.RequestURI()
}
