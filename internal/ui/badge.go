package ui

// Badge is the cart counter shown in the header.
type Badge struct {
	Count  int
	Hidden bool
}

// NewBadge hides the badge when the cart is empty.
func NewBadge(count int) Badge {
	if count < 0 {
		count = 0
	}
	return Badge{Count: count, Hidden: count == 0}
}
