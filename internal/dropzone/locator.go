// Package dropzone picks the insertion slot for a card being dragged over a column.
//
// A column renders one marker above every card ("insert before this card") and a
// final marker after the last card ("insert at end"). While a drag is in progress the
// marker nearest below the pointer is highlighted, and a drop inserts there.
package dropzone

import "math"

// End is the BeforeID of the trailing marker of a column.
const End = ""

// DefaultAnchorOffset is the distance from a marker's top edge to the point the pointer
// is compared against, in the units the markers are laid out in.
const DefaultAnchorOffset = 50

// Marker is one rendered insertion point.
type Marker struct {
	BeforeID string  // card the slot precedes, or End
	Top      float64 // top edge of the marker
}

// AtEnd reports whether the marker is the trailing slot.
func (m Marker) AtEnd() bool { return m.BeforeID == End }

// Locator resolves pointer positions to markers.
type Locator struct {
	AnchorOffset float64
}

func New(anchorOffset float64) Locator {
	return Locator{AnchorOffset: anchorOffset}
}

// Nearest returns the index of the chosen marker and the marker itself.
//
// Every marker gets offset = pointerY - (Top + AnchorOffset). Only negative offsets
// qualify, and the one closest to zero wins; ties keep the earlier marker. When nothing
// qualifies the last marker wins. With no markers at all the result is index -1 and an
// End marker.
func (l Locator) Nearest(pointerY float64, markers []Marker) (int, Marker) {
	if len(markers) == 0 {
		return -1, Marker{BeforeID: End}
	}
	best := len(markers) - 1
	bestOffset := math.Inf(-1)
	for i, m := range markers {
		offset := pointerY - (m.Top + l.AnchorOffset)
		if offset < 0 && offset > bestOffset {
			bestOffset = offset
			best = i
		}
	}
	return best, markers[best]
}

// Highlight returns one flag per marker with only the nearest one set.
func (l Locator) Highlight(pointerY float64, markers []Marker) []bool {
	lit := make([]bool, len(markers))
	if i, _ := l.Nearest(pointerY, markers); i >= 0 {
		lit[i] = true
	}
	return lit
}

// IsNoop reports whether dropping cardID on m would leave it where it already is.
func IsNoop(cardID string, m Marker) bool {
	return m.BeforeID != End && m.BeforeID == cardID
}
