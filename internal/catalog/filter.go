package catalog

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort modes accepted by Filter.Sort.
const (
	SortDefault   = "default"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortTitleAsc  = "title-asc"
)

// GenreAll disables genre filtering.
const GenreAll = "all"

// SortModes lists the sort options in display order.
var SortModes = []string{SortDefault, SortPriceAsc, SortPriceDesc, SortTitleAsc}

// Filter describes which projection of the catalog to show.
type Filter struct {
	Text  string
	Genre string
	Sort  string
}

// ParseFilter reads q, genre and sort from query values.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Text:  strings.TrimSpace(q.Get("q")),
		Genre: strings.TrimSpace(q.Get("genre")),
		Sort:  strings.TrimSpace(q.Get("sort")),
	}
	return f.normalize()
}

func (f Filter) normalize() Filter {
	f.Text = strings.TrimSpace(f.Text)
	f.Genre = strings.TrimSpace(f.Genre)
	if f.Genre == "" {
		f.Genre = GenreAll
	}
	switch f.Sort {
	case SortPriceAsc, SortPriceDesc, SortTitleAsc:
	default:
		f.Sort = SortDefault
	}
	return f
}

// IsZero reports whether the filter shows the whole catalog in catalog order.
func (f Filter) IsZero() bool {
	f = f.normalize()
	return f.Text == "" && f.Genre == GenreAll && f.Sort == SortDefault
}

// Values encodes the non-default fields back into query values.
func (f Filter) Values() url.Values {
	f = f.normalize()
	v := url.Values{}
	if f.Text != "" {
		v.Set("q", f.Text)
	}
	if f.Genre != GenreAll {
		v.Set("genre", f.Genre)
	}
	if f.Sort != SortDefault {
		v.Set("sort", f.Sort)
	}
	return v
}

// Matches applies the text and genre predicates.
func (f Filter) Matches(p Product) bool {
	f = f.normalize()
	if needle := strings.ToLower(f.Text); needle != "" {
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Author), needle) {
			return false
		}
	}
	if f.Genre != GenreAll && !p.HasGenre(f.Genre) {
		return false
	}
	return true
}

// Query returns the filtered, sorted projection. The catalog itself is untouched.
func (c *Catalog) Query(f Filter) []Product {
	if c == nil {
		return nil
	}
	f = f.normalize()
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	switch f.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case SortTitleAsc:
		// collators are not safe for concurrent use
		col := collate.New(language.Russian, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(out[i].Title, out[j].Title) < 0
		})
	}
	return out
}
