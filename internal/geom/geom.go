package geom

import (
	"image"
	"math"
	"sort"
)

// Vec2 is a point or direction in image coordinates (Y grows downward)
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Dot returns the dot product of v and o
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Length returns the Euclidean length of v
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Normalized returns v scaled to unit length.
// The second result is false when v has zero length.
func (v Vec2) Normalized() (Vec2, bool) {
	l := v.Length()
	if l == 0 || math.IsNaN(l) {
		return Vec2{}, false
	}
	return Vec2{v.X / l, v.Y / l}, true
}

func cross(o, a, b Vec2) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Rect is an axis-aligned rectangle given by its min and max corners
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Bounds returns the smallest Rect containing all points.
// An empty point set yields the zero Rect.
func Bounds(points []Vec2) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		r = r.Extend(p)
	}
	return r
}

// Extend returns r grown to include p
func (r Rect) Extend(p Vec2) Rect {
	r.MinX = math.Min(r.MinX, p.X)
	r.MinY = math.Min(r.MinY, p.Y)
	r.MaxX = math.Max(r.MaxX, p.X)
	r.MaxY = math.Max(r.MaxY, p.Y)
	return r
}

// Union returns the smallest Rect containing r and o
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Padded grows every side of r by dx horizontally and dy vertically
func (r Rect) Padded(dx, dy float64) Rect {
	return Rect{MinX: r.MinX - dx, MinY: r.MinY - dy, MaxX: r.MaxX + dx, MaxY: r.MaxY + dy}
}

// Width returns the horizontal extent of r
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent of r
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Empty reports whether r has no area
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Intersects reports whether r and o overlap. Touching edges count as overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Image converts r to an integer image rectangle. The origin is floored and
// the size truncated.
func (r Rect) Image() image.Rectangle {
	x, y := int(math.Floor(r.MinX)), int(math.Floor(r.MinY))
	return image.Rect(x, y, x+int(r.Width()), y+int(r.Height()))
}

// ConvexHull returns the convex hull of points in counter-clockwise order
// (monotone chain). Collinear points are dropped.
func ConvexHull(points []Vec2) []Vec2 {
	pts := make([]Vec2, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	pts = dedupe(pts)
	if len(pts) < 3 {
		return pts
	}

	hull := make([]Vec2, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func dedupe(pts []Vec2) []Vec2 {
	out := pts[:0]
	for i, p := range pts {
		if i > 0 && p == pts[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// PolygonContains reports whether p lies inside or on the boundary of the
// convex polygon poly (either winding)
func PolygonContains(poly []Vec2, p Vec2) bool {
	if len(poly) < 3 {
		return false
	}
	var pos, neg bool
	for i := range poly {
		c := cross(poly[i], poly[(i+1)%len(poly)], p)
		if c > 0 {
			pos = true
		} else if c < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// Translate returns a copy of points moved by d
func Translate(points []Vec2, d Vec2) []Vec2 {
	out := make([]Vec2, len(points))
	for i, p := range points {
		out[i] = p.Add(d)
	}
	return out
}
