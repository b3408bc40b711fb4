// Package crop cuts a single receipt out of a photo and straightens it.
package crop

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/zombor/receipt-ocr/internal/geom"
)

// Background fills the parts of a crop outside the receipt's hull and the
// corners exposed by rotation
var Background = color.NRGBA{R: 59, G: 59, B: 59, A: 255}

// Region is a receipt cut out of a photo
type Region struct {
	// Image is the crop, with pixels outside Hull painted Background
	Image *image.NRGBA
	// Origin is the crop's top-left in photo coordinates
	Origin image.Point
	// Width is the crop's width, or the hull's when there is no photo
	Width int
	// Hull is the receipt outline relative to Origin
	Hull []geom.Vec2
}

// Bounds returns the clip rectangle in photo coordinates for hull
func Bounds(hull []geom.Vec2) image.Rectangle {
	return geom.Bounds(hull).Image()
}

// Extract cuts the bounding rectangle of hull, clipped to the photo, out of
// photo and paints every pixel outside hull with Background. A nil photo
// yields a Region without an image.
func Extract(photo image.Image, hull []geom.Vec2) Region {
	clip := Bounds(hull)
	if photo != nil {
		clip = clip.Intersect(photo.Bounds())
	}
	origin := clip.Min
	region := Region{
		Origin: origin,
		Width:  clip.Dx(),
		Hull:   geom.Translate(hull, geom.Vec2{X: -float64(origin.X), Y: -float64(origin.Y)}),
	}
	if photo == nil || clip.Empty() {
		return region
	}

	img := imaging.Crop(photo, clip)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := geom.Vec2{X: float64(origin.X + x - b.Min.X), Y: float64(origin.Y + y - b.Min.Y)}
			if !geom.PolygonContains(hull, p) {
				img.SetNRGBA(x, y, Background)
			}
		}
	}
	region.Image = img
	return region
}

// Deskew rotates img so that text running at angle radians (measured from
// the image X axis, Y down) runs horizontally
func Deskew(img image.Image, angle float64) *image.NRGBA {
	return imaging.Rotate(img, angle*180/math.Pi, Background)
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
