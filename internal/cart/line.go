// Package cart implements the persisted shopping cart: the line model, the
// key/value backends it is stored in and the Store that mutates it.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Line is one product in the cart. Title, price, image and author are a
// snapshot taken when the product was first added.
type Line struct {
	ID     string
	Title  string
	Price  decimal.Decimal
	Img    string
	Author string
	Qty    int
}

// Subtotal is price × qty.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

type wireLine struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Price  json.Number `json:"price"`
	Img    string      `json:"img"`
	Qty    float64     `json:"qty"`
	Author string      `json:"author"`
}

// MarshalJSON writes the price as a JSON number.
func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireLine{
		ID:     l.ID,
		Title:  l.Title,
		Price:  json.Number(l.Price.String()),
		Img:    l.Img,
		Qty:    float64(l.Qty),
		Author: l.Author,
	})
}

// UnmarshalJSON accepts the price as a number or a numeric string.
func (l *Line) UnmarshalJSON(data []byte) error {
	var w wireLine
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	price := decimal.Zero
	if w.Price != "" {
		d, err := decimal.NewFromString(w.Price.String())
		if err != nil {
			return fmt.Errorf("cart: line %q price: %w", w.ID, err)
		}
		price = d
	}
	qty := 0
	if !math.IsNaN(w.Qty) && !math.IsInf(w.Qty, 0) {
		qty = clampQty(w.Qty)
	}
	*l = Line{
		ID:     strings.TrimSpace(w.ID),
		Title:  w.Title,
		Price:  price,
		Img:    w.Img,
		Author: w.Author,
		Qty:    qty,
	}
	return nil
}

// Lines is the ordered cart content.
type Lines []Line

// Total is Σ price × qty.
func (ls Lines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the sum of quantities.
func (ls Lines) Count() int {
	n := 0
	for _, l := range ls {
		n += l.Qty
	}
	return n
}

// Index returns the position of id or -1.
func (ls Lines) Index(id string) int {
	for i, l := range ls {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy.
func (ls Lines) Clone() Lines {
	if ls == nil {
		return nil
	}
	out := make(Lines, len(ls))
	copy(out, ls)
	return out
}

// normalize drops lines without an id, raises qty to at least 1 and merges
// duplicate ids into the first occurrence.
func (ls Lines) normalize() Lines {
	out := make(Lines, 0, len(ls))
	for _, l := range ls {
		if l.ID == "" {
			continue
		}
		if l.Qty < 1 {
			l.Qty = 1
		}
		if i := out.Index(l.ID); i >= 0 {
			out[i].Qty = addQty(out[i].Qty, l.Qty)
			continue
		}
		out = append(out, l)
	}
	return out
}

var errNotArray = errors.New("cart: persisted value is not an array")

// Decode parses the persisted form. Individual lines that fail to decode are
// dropped; a value that is not a JSON array is an error.
func Decode(data []byte) (Lines, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotArray
		}
		return nil, fmt.Errorf("cart: decode: %w", err)
	}
	if raw == nil {
		// literal null
		return nil, errNotArray
	}
	lines := make(Lines, 0, len(raw))
	for _, msg := range raw {
		var l Line
		if err := json.Unmarshal(msg, &l); err != nil {
			continue
		}
		lines = append(lines, l)
	}
	return lines.normalize(), nil
}

// Encode produces the persisted form. An empty cart encodes as [].
func Encode(lines Lines) ([]byte, error) {
	if lines == nil {
		lines = Lines{}
	}
	return json.Marshal(lines)
}

const maxQty = math.MaxInt32

func clampQty(v float64) int {
	v = math.Floor(v)
	if v > maxQty {
		return maxQty
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

func addQty(a, b int) int {
	if a > maxQty-b {
		return maxQty
	}
	return a + b
}
