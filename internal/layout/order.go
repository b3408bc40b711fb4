package layout

import (
	"math"
	"sort"

	"github.com/zombor/receipt-ocr/internal/geom"
	"github.com/zombor/receipt-ocr/internal/ocr"
)

// Line is a run of words sharing a text line, in the order they were grouped
type Line []ocr.WordBox

// First returns the line's first word, or the zero WordBox for an empty line
func (l Line) First() ocr.WordBox {
	if len(l) == 0 {
		return ocr.WordBox{}
	}
	return l[0]
}

// Axes are the unit directions a receipt's text runs along
type Axes struct {
	X geom.Vec2 `json:"x"`
	Y geom.Vec2 `json:"y"`
}

// ImageAxes are the photo's own axes
var ImageAxes = Axes{X: geom.Vec2{X: 1, Y: 0}, Y: geom.Vec2{X: 0, Y: 1}}

// Angle returns the rotation of the X axis from the photo's X axis, in radians
func (a Axes) Angle() float64 {
	return math.Atan2(a.X.Y, a.X.X)
}

// BuildLines turns line clusters into Lines of words
func BuildLines(words []ocr.WordBox, lines Group) []Line {
	out := make([]Line, 0, len(lines.Clusters))
	for _, c := range lines.Clusters {
		line := make(Line, 0, len(c.Members))
		for _, m := range c.Members {
			line = append(line, words[m])
		}
		out = append(out, line)
	}
	return out
}

// EstimateAxes averages the top edge (corner 0 to 1) and right edge
// (corner 1 to 2) of every word with at least three corners. An axis whose
// sum vanishes falls back to the matching image axis.
func EstimateAxes(lines []Line) Axes {
	var sumX, sumY geom.Vec2
	for _, line := range lines {
		for _, w := range line {
			if len(w.Poly) < 3 {
				continue
			}
			sumX = sumX.Add(w.Poly[1].Sub(w.Poly[0]))
			sumY = sumY.Add(w.Poly[2].Sub(w.Poly[1]))
		}
	}

	axes := ImageAxes
	if x, ok := sumX.Normalized(); ok {
		axes.X = x
	}
	if y, ok := sumY.Normalized(); ok {
		axes.Y = y
	}
	return axes
}

// EstimateVerticalSpacing returns the most common word height (corner 1 to 2,
// rounded). Ties go to the height seen first; no words gives 0.
func EstimateVerticalSpacing(lines []Line) int {
	counts := make(map[int]int)
	var order []int
	for _, line := range lines {
		for _, w := range line {
			if len(w.Poly) < 3 {
				continue
			}
			h := int(math.Round(w.Poly[2].Sub(w.Poly[1]).Length()))
			if counts[h] == 0 {
				order = append(order, h)
			}
			counts[h]++
		}
	}

	best, bestCount := 0, 0
	for _, h := range order {
		if counts[h] > bestCount {
			best, bestCount = h, counts[h]
		}
	}
	return best
}

// SortLines orders lines top to bottom by projecting each line's first
// top-left corner onto the Y axis. Lines that project equally keep their
// relative order.
func SortLines(lines []Line, axes Axes) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].First().TopLeft().Dot(axes.Y) < lines[j].First().TopLeft().Dot(axes.Y)
	})
}
