package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
products:
  - id: m1
    title: Манга Влюбленный паразит
    author: Koisuru kiseichuu
    price: 1199
    img: /assets/images/parasite1.png
    genre: seinen
    desc: "**Bold** intro"
  - id: m2
    title: Гуррен Лаганн
    author: Накашима Казуки
    price: 2890.50
    images: [/a.png, /b.png, /a.png]
    genre: [shonen, mecha]
  - id: m3
    title: Акира
    author: Otomo
    price: 500
`

func mustParse(t *testing.T) *Catalog {
	t.Helper()
	c, err := Parse([]byte(fixtureYAML), nil)
	require.NoError(t, err)
	return c
}

func TestParseNormalizesProducts(t *testing.T) {
	c := mustParse(t)
	require.Equal(t, 3, c.Len())

	m1, ok := c.Lookup("m1")
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(1199).Equal(m1.Price))
	require.Equal(t, []string{"/assets/images/parasite1.png"}, m1.Images)
	require.Equal(t, []string{"seinen"}, m1.Genres)
	require.Contains(t, string(m1.DescriptionHTML), "<strong>Bold</strong>")
	require.Equal(t, "Bold intro", m1.Excerpt)

	m2, _ := c.Lookup("m2")
	require.Equal(t, []string{"/a.png", "/b.png"}, m2.Images, "duplicate images are dropped")
	require.Equal(t, "2890.5", m2.Price.String())

	m3, _ := c.Lookup("m3")
	require.Equal(t, MissingImage, m3.Image())

	require.Equal(t, []string{"mecha", "seinen", "shonen"}, c.Genres())
}

func TestNewRejectsDuplicateAndInvalid(t *testing.T) {
	_, err := New([]Product{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}}, nil)
	require.True(t, errors.Is(err, ErrDuplicateID))

	_, err = New([]Product{{ID: "", Title: "A"}}, nil)
	require.True(t, errors.Is(err, ErrInvalidProduct))

	_, err = New([]Product{{ID: "x", Title: "X", Price: decimal.NewFromInt(-1)}}, nil)
	require.True(t, errors.Is(err, ErrInvalidProduct))

	for _, id := range []string{"m.1", "m 1", "манга", strings.Repeat("a", 200)} {
		_, err = New([]Product{{ID: id, Title: "X"}}, nil)
		require.True(t, errors.Is(err, ErrInvalidProduct), "id %q", id)
	}
}

func TestParseRejectsBadPrice(t *testing.T) {
	_, err := Parse([]byte("products:\n  - id: a\n    title: A\n    price: free\n"), nil)
	require.Error(t, err)
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var c *Catalog
	require.Zero(t, c.Len())
	require.Nil(t, c.All())
	require.Nil(t, c.Query(Filter{}))
	_, ok := c.Lookup("m1")
	require.False(t, ok)
}

func TestLoadFileShippedCatalog(t *testing.T) {
	c, err := LoadFile("../../data/products.yaml", nil)
	require.NoError(t, err)
	m1, ok := c.Lookup("m1")
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(1199).Equal(m1.Price))
	require.Len(t, c.Featured(4), 4)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("does-not-exist.yaml", nil)
	require.Error(t, err)
}

func TestRendererSanitizesRawHTML(t *testing.T) {
	out := string(NewRenderer().Render("hello <script>alert(1)</script> *world*"))
	require.NotContains(t, out, "<script>")
	require.Contains(t, out, "<em>world</em>")
}

func TestExcerptTruncatesOnRunes(t *testing.T) {
	long := "<p>" + strings.Repeat("ж", 130) + "</p>"
	got := Excerpt(long, 120)
	require.True(t, strings.HasSuffix(got, "…"))
	require.Equal(t, 121, len([]rune(got)))
	require.Equal(t, "a b", Excerpt("<p>a</p><p>b</p>", 120))
}
