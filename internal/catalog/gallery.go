package catalog

// Gallery is the image carousel of a product page. Index always points at a
// valid image; navigation wraps at both ends.
type Gallery struct {
	Images []string
	Index  int
}

// Thumb is one thumbnail button.
type Thumb struct {
	Index  int
	Src    string
	Active bool
}

// NewGallery normalizes index modulo the image count. An empty image list
// shows the missing-image placeholder.
func NewGallery(images []string, index int) Gallery {
	if len(images) == 0 {
		images = []string{MissingImage}
	}
	n := len(images)
	return Gallery{Images: images, Index: ((index % n) + n) % n}
}

// Current returns the image shown in the main slot.
func (g Gallery) Current() string { return g.Images[g.Index] }

// Prev returns the index of the previous image, wrapping to the last.
func (g Gallery) Prev() int { return NewGallery(g.Images, g.Index-1).Index }

// Next returns the index of the next image, wrapping to the first.
func (g Gallery) Next() int { return NewGallery(g.Images, g.Index+1).Index }

// Multiple reports whether navigation controls are useful.
func (g Gallery) Multiple() bool { return len(g.Images) > 1 }

// Thumbs lists thumbnails with the active one flagged.
func (g Gallery) Thumbs() []Thumb {
	out := make([]Thumb, len(g.Images))
	for i, src := range g.Images {
		out[i] = Thumb{Index: i, Src: src, Active: i == g.Index}
	}
	return out
}
