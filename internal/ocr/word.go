// Package ocr holds the recognized-word model and the formats OCR engines
// hand words to the rest of the pipeline in.
package ocr

import (
	"math"

	"github.com/zombor/receipt-ocr/internal/geom"
)

// Default padding applied to a word's bounds before receipt clustering.
// The vertical padding is generous so that words a few lines apart on the
// same slip still touch.
const (
	DefaultPadX = 3
	DefaultPadY = 30
)

// WordBox is a single recognized word: its polygon in photo coordinates
// (clockwise from the top-left corner), its text, and its padded bounds.
type WordBox struct {
	Poly []geom.Vec2 `json:"poly"`
	Text string      `json:"text"`
	Box  geom.Rect   `json:"box"`
}

// NewWordBox creates a WordBox with the default padding
func NewWordBox(poly []geom.Vec2, text string) WordBox {
	return NewWordBoxPadded(poly, text, DefaultPadX, DefaultPadY)
}

// NewWordBoxPadded creates a WordBox whose Box is the polygon bounds grown by
// padX/padY on each side
func NewWordBoxPadded(poly []geom.Vec2, text string, padX, padY float64) WordBox {
	return WordBox{
		Poly: poly,
		Text: text,
		Box:  geom.Bounds(poly).Padded(padX, padY),
	}
}

// Repadded returns a copy of w with its Box recomputed using padX/padY
func (w WordBox) Repadded(padX, padY float64) WordBox {
	return NewWordBoxPadded(w.Poly, w.Text, padX, padY)
}

// Bounds returns the unpadded bounds of the polygon
func (w WordBox) Bounds() geom.Rect {
	return geom.Bounds(w.Poly)
}

// Corner returns the i-th polygon vertex, or the zero point if the polygon
// has fewer vertices
func (w WordBox) Corner(i int) geom.Vec2 {
	if i < 0 || i >= len(w.Poly) {
		return geom.Vec2{}
	}
	return w.Poly[i]
}

// TopLeft returns the first polygon vertex
func (w WordBox) TopLeft() geom.Vec2 {
	return w.Corner(0)
}

// VerticalExtent returns the min and max Y over the polygon
func (w WordBox) VerticalExtent() (float64, float64) {
	if len(w.Poly) == 0 {
		return 0, 0
	}
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range w.Poly {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return minY, maxY
}

// Quad builds the four-vertex polygon of an axis-aligned box, clockwise from
// the top-left
func Quad(minX, minY, maxX, maxY float64) []geom.Vec2 {
	return []geom.Vec2{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}}
}
