package catalog

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeID(t *testing.T) {
	require.Equal(t, "m1", SanitizeID(" m1 "))
	require.Equal(t, "m1scriptalert1script", SanitizeID("m1<script>alert(1)</script>"))
	require.Equal(t, "a_b-C9", SanitizeID("a_b-C9"))
	long := ""
	for i := 0; i < 80; i++ {
		long += "x"
	}
	require.Len(t, SanitizeID(long), 64)
}

func TestResolveIDAcceptsAlternateParams(t *testing.T) {
	id, ok := ResolveID(url.Values{"product": {"m2"}})
	require.True(t, ok)
	require.Equal(t, "m2", id)

	id, ok = ResolveID(url.Values{"id": {"m1"}, "p": {"m3"}})
	require.True(t, ok)
	require.Equal(t, "m1", id)

	_, ok = ResolveID(url.Values{"id": {"<>"}})
	require.False(t, ok)
}

func TestDetailStates(t *testing.T) {
	c := mustParse(t)

	require.Equal(t, StateNoID, Detail(c, url.Values{}).State)
	require.Equal(t, StateNoID, Detail(nil, url.Values{}).State, "missing id wins over missing catalog")
	require.Equal(t, StateUnavailable, Detail(nil, url.Values{"id": {"m1"}}).State)

	res := Detail(c, url.Values{"id": {"zz"}})
	require.Equal(t, StateNotFound, res.State)
	require.Equal(t, "zz", res.ID)

	res = Detail(c, url.Values{"p": {"m2"}})
	require.Equal(t, StateFound, res.State)
	require.Equal(t, "Гуррен Лаганн", res.Product.Title)
	require.Equal(t, "found", res.State.String())
}

func TestGalleryWrapsBothEnds(t *testing.T) {
	g := NewGallery([]string{"a", "b", "c"}, 0)
	require.Equal(t, "a", g.Current())
	require.Equal(t, 2, g.Prev())
	require.Equal(t, 1, g.Next())

	g = NewGallery([]string{"a", "b", "c"}, 2)
	require.Equal(t, 0, g.Next())

	g = NewGallery([]string{"a", "b", "c"}, -4)
	require.Equal(t, 2, g.Index)

	g = NewGallery([]string{"a", "b", "c"}, 7)
	require.Equal(t, 1, g.Index)
	thumbs := g.Thumbs()
	require.Len(t, thumbs, 3)
	require.True(t, thumbs[1].Active)
	require.False(t, thumbs[0].Active)
}

func TestGalleryEmptyUsesPlaceholder(t *testing.T) {
	g := NewGallery(nil, 3)
	require.Equal(t, MissingImage, g.Current())
	require.False(t, g.Multiple())
}
