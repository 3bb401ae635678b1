// Package catalog holds the read-only product list and the projections the
// storefront renders from it: filtered grids, detail lookups and galleries.
package catalog

import (
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MissingImage is shown when a product (or a placeholder cart line) has no picture.
const MissingImage = "/assets/images/missing.png"

var (
	// ErrDuplicateID is returned when two products share an id.
	ErrDuplicateID = errors.New("catalog: duplicate product id")
	// ErrInvalidProduct is returned for products with an empty or unaddressable
	// id, an empty title or a negative price.
	ErrInvalidProduct = errors.New("catalog: invalid product")
)

// Product is an immutable catalog entry.
type Product struct {
	ID          string
	Title       string
	Author      string
	Price       decimal.Decimal
	Images      []string
	Genres      []string
	Description string

	// Rendered once when the catalog is built.
	DescriptionHTML template.HTML
	Excerpt         string
}

// Image returns the first image, which is what cart lines snapshot.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return MissingImage
	}
	return p.Images[0]
}

// HasGenre reports set membership.
func (p Product) HasGenre(genre string) bool {
	for _, g := range p.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// Catalog is the process-wide product list. It is never mutated after New,
// so it is safe to share between requests.
type Catalog struct {
	products []Product
	byID     map[string]int
	genres   []string
}

// New validates products, renders their descriptions and indexes them by id.
// Catalog order is the order of products.
func New(products []Product, renderer *Renderer) (*Catalog, error) {
	if renderer == nil {
		renderer = NewRenderer()
	}
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	genreSet := map[string]struct{}{}
	for i, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.Title = strings.TrimSpace(p.Title)
		p.Author = strings.TrimSpace(p.Author)
		if p.ID == "" || p.Title == "" {
			return nil, fmt.Errorf("%w: entry %d needs id and title", ErrInvalidProduct, i)
		}
		if SanitizeID(p.ID) != p.ID {
			return nil, fmt.Errorf("%w: id %q is not addressable by URL", ErrInvalidProduct, p.ID)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("%w: %s has negative price", ErrInvalidProduct, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		p.Images = cleanList(p.Images)
		if len(p.Images) == 0 {
			p.Images = []string{MissingImage}
		}
		p.Genres = cleanList(p.Genres)
		for _, g := range p.Genres {
			genreSet[g] = struct{}{}
		}
		p.DescriptionHTML = renderer.Render(p.Description)
		p.Excerpt = Excerpt(string(p.DescriptionHTML), excerptRunes)
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	for g := range genreSet {
		c.genres = append(c.genres, g)
	}
	sort.Strings(c.genres)
	return c, nil
}

// Len returns the number of products; a nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// All returns a copy of the products in catalog order.
func (c *Catalog) All() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Featured returns up to n products from the head of the catalog.
func (c *Catalog) Featured(n int) []Product {
	all := c.All()
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Lookup finds a product by id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Genres returns the sorted distinct genres.
func (c *Catalog) Genres() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.genres))
	copy(out, c.genres)
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
