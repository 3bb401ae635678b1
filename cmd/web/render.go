package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/manga-web/internal/format"
	"finitefield.org/manga-web/internal/handlers"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/nav"
	"finitefield.org/manga-web/internal/observability"
	"finitefield.org/manga-web/internal/seo"
	"finitefield.org/manga-web/internal/ui"
)

// templateCache holds one template set per page plus the shared set used for
// fragments. Layout and partials live at the top level of dir; pages live in
// dir/pages and each defines "content".
type templateCache struct {
	dir   string
	dev   bool
	funcs template.FuncMap

	mu    sync.RWMutex
	pages map[string]*template.Template
	frags *template.Template
}

func newTemplateCache(dir string, dev bool, funcs template.FuncMap) *templateCache {
	return &templateCache{dir: dir, dev: dev, funcs: funcs}
}

func (c *templateCache) load() error {
	var shared, pages []string
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".tmpl") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "pages" {
			pages = append(pages, path)
		} else {
			shared = append(shared, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(shared) == 0 || len(pages) == 0 {
		return fmt.Errorf("no templates found under %s", c.dir)
	}
	base, err := template.New("_root").Funcs(c.funcs).ParseFiles(shared...)
	if err != nil {
		return err
	}
	set := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := base.Clone()
		if err != nil {
			return err
		}
		if _, err := t.ParseFiles(p); err != nil {
			return err
		}
		set[strings.TrimSuffix(filepath.Base(p), ".tmpl")] = t
	}
	c.mu.Lock()
	c.pages, c.frags = set, base
	c.mu.Unlock()
	return nil
}

// lookup returns the page set (or the fragment set when page is ""). In dev
// mode templates are reparsed on every call.
func (c *templateCache) lookup(page string) (*template.Template, error) {
	if c.dev {
		if err := c.load(); err != nil {
			return nil, err
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frags == nil {
		return nil, fmt.Errorf("templates not initialized")
	}
	if page == "" {
		return c.frags, nil
	}
	t, ok := c.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", page)
	}
	return t, nil
}

func (a *app) funcMap() template.FuncMap {
	return template.FuncMap{
		"now": time.Now,
		"t": func(lang, key string) string {
			return a.bundle.T(lang, key)
		},
		"tf": func(lang, key string, args ...any) string {
			return a.bundle.Tf(lang, key, args...)
		},
		"money": func(v decimal.Decimal, lang string) string {
			return format.Price(v, lang)
		},
		"count": func(n int, lang string) string {
			return format.Count(n, lang)
		},
		"add": func(a, b int) int { return a + b },
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			m := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				k, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
				}
				m[k] = pairs[i+1]
			}
			return m, nil
		},
		"badge": func(b ui.Badge, lang string) BadgeView {
			return BadgeView{Badge: b, Lang: lang}
		},
		// JSON-LD documents come from json.Marshal, which escapes <, > and &.
		"jsonld": func(s string) template.JS { return template.JS(s) },
	}
}

// renderPage executes the layout for page with status 200.
func (a *app) renderPage(w http.ResponseWriter, r *http.Request, page string, data handlers.PageData) {
	a.renderPageStatus(w, r, http.StatusOK, page, data)
}

func (a *app) renderPageStatus(w http.ResponseWriter, r *http.Request, status int, page string, data handlers.PageData) {
	t, err := a.templates.lookup(page)
	if err != nil {
		a.templateError(w, r, err)
		return
	}
	a.execute(w, r, status, t, "base", data)
}

// renderTemplate executes a named fragment.
func (a *app) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, err := a.templates.lookup("")
	if err != nil {
		a.templateError(w, r, err)
		return
	}
	a.execute(w, r, http.StatusOK, t, name, data)
}

func (a *app) execute(w http.ResponseWriter, r *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		a.templateError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (a *app) templateError(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).Error("template", zap.Error(err))
	msg := "template error"
	if a.cfg.Dev {
		msg = err.Error()
	}
	http.Error(w, msg, http.StatusInternalServerError)
}

// layout gathers the request values every page shares. It allocates the
// session cart id, so the session cookie always carries one after a page view.
func (a *app) layout(r *http.Request) handlers.Layout {
	return handlers.Layout{
		Lang:      mw.Lang(r),
		Path:      r.URL.Path,
		CSRFToken: mw.CSRFToken(r),
		CartCount: a.cartFor(r).ItemCount(r.Context()),
		Analytics: handlers.AnalyticsFromConfig(*a.cfg),
		Dev:       a.cfg.Dev,
	}
}

// t translates key for the request language.
func (a *app) t(r *http.Request, key string) string {
	return a.bundle.T(mw.Lang(r), key)
}

// pageTitle appends the site name.
func (a *app) pageTitle(r *http.Request, title string) string {
	site := a.t(r, "site.name")
	if title == "" || title == site {
		return site
	}
	return title + " | " + site
}

// breadcrumbJSONLD mirrors the visible breadcrumbs as a schema.org list.
func (a *app) breadcrumbJSONLD(r *http.Request, crumbs []nav.Crumb) map[string]any {
	base := siteURL(r)
	items := make([]seo.BreadcrumbItem, 0, len(crumbs))
	for _, c := range crumbs {
		name := c.Label
		if c.LabelKey != "" {
			name = a.t(r, c.LabelKey)
		}
		href := c.Href
		if c.Active {
			href = r.URL.RequestURI()
		}
		items = append(items, seo.BreadcrumbItem{Name: name, Item: base + href})
	}
	return seo.BreadcrumbList(items)
}

// absoluteURL reconstructs the public URL of r for canonical links.
func absoluteURL(r *http.Request) string {
	return siteURL(r) + r.URL.RequestURI()
}

func siteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
