package layout

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/zombor/receipt-ocr/internal/geom"
	"github.com/zombor/receipt-ocr/internal/ocr"
)

// rotated builds a w×h word whose top-left is at origin, rotated by angle
func rotated(origin geom.Vec2, w, h, angle float64, text string) ocr.WordBox {
	x := geom.Vec2{X: w * math.Cos(angle), Y: w * math.Sin(angle)}
	y := geom.Vec2{X: -h * math.Sin(angle), Y: h * math.Cos(angle)}
	poly := []geom.Vec2{
		origin,
		origin.Add(x),
		origin.Add(x).Add(y),
		origin.Add(y),
	}
	return ocr.NewWordBox(poly, text)
}

var _ = Describe("EstimateAxes", func() {
	When("text is skewed", func() {
		It("should recover the skew angle", func() {
			angle := 0.1
			lines := []Line{
				{rotated(geom.Vec2{X: 0, Y: 0}, 50, 20, angle, "a"), rotated(geom.Vec2{X: 80, Y: 8}, 30, 20, angle, "b")},
				{rotated(geom.Vec2{X: 0, Y: 40}, 60, 20, angle, "c")},
			}
			axes := EstimateAxes(lines)
			Expect(axes.Angle()).To(BeNumerically("~", angle, 1e-9))
			Expect(axes.Y.Length()).To(BeNumerically("~", 1, 1e-9))
		})
	})

	When("every point is identical", func() {
		It("should fall back to the image axes", func() {
			p := geom.Vec2{X: 5, Y: 5}
			lines := []Line{{ocr.NewWordBox([]geom.Vec2{p, p, p, p}, "x")}}
			Expect(EstimateAxes(lines)).To(Equal(ImageAxes))
		})
	})

	When("there are no words", func() {
		It("should fall back to the image axes", func() {
			Expect(EstimateAxes(nil)).To(Equal(ImageAxes))
			Expect(ImageAxes.Angle()).To(BeZero())
		})
	})
})

var _ = Describe("EstimateVerticalSpacing", func() {
	It("should return the most common rounded height", func() {
		lines := []Line{
			{word(0, 0, 10, 20.2, "a"), word(20, 0, 30, 19.8, "b")},
			{word(0, 40, 10, 70, "c")},
		}
		Expect(EstimateVerticalSpacing(lines)).To(Equal(20))
	})

	It("should break ties by first seen", func() {
		lines := []Line{
			{word(0, 0, 10, 30, "a"), word(0, 40, 10, 60, "b")},
		}
		Expect(EstimateVerticalSpacing(lines)).To(Equal(30))
	})

	It("should return zero without words", func() {
		Expect(EstimateVerticalSpacing(nil)).To(BeZero())
	})
})

var _ = Describe("SortLines", func() {
	It("should order lines by their Y projection", func() {
		lines := []Line{
			{word(0, 100, 10, 120, "third")},
			{word(0, 10, 10, 30, "first")},
			{word(50, 50, 60, 70, "second")},
		}
		SortLines(lines, ImageAxes)
		Expect(lines[0].First().Text).To(Equal("first"))
		Expect(lines[1].First().Text).To(Equal("second"))
		Expect(lines[2].First().Text).To(Equal("third"))
	})

	It("should use the skewed axis rather than raw Y", func() {
		axes := Axes{X: geom.Vec2{X: 0.8, Y: 0.6}, Y: geom.Vec2{X: -0.6, Y: 0.8}}
		// raw Y puts "a" first, the skewed projection puts "b" first
		lines := []Line{
			{word(0, 10, 10, 20, "a")},
			{word(100, 20, 110, 30, "b")},
		}
		SortLines(lines, axes)
		Expect(lines[0].First().Text).To(Equal("b"))
		Expect(lines[1].First().Text).To(Equal("a"))
	})

	It("should keep stream order for equal projections", func() {
		lines := []Line{
			{word(0, 0, 10, 10, "one")},
			{word(50, 0, 60, 10, "two")},
		}
		SortLines(lines, ImageAxes)
		Expect(lines[0].First().Text).To(Equal("one"))
	})
})
