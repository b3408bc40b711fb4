package receipt

import (
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/crop"
	"github.com/zombor/receipt-ocr/internal/geom"
	"github.com/zombor/receipt-ocr/internal/layout"
	"github.com/zombor/receipt-ocr/internal/ocr"
)

// Region is one physical receipt found in a photo. It owns its lines and
// labels; its record is derived from them and rebuilt whenever a label
// changes.
type Region struct {
	Lines           []layout.Line
	Origin          geom.Vec2
	Hull            []geom.Vec2
	Axes            layout.Axes
	VerticalSpacing int
	Image           *image.NRGBA

	classifier *classify.Classifier
	width      float64
	labels     classify.LabelMap
	edited     map[classify.Coord]bool
	record     PurchaseRecord
	stale      bool
}

// Analyzer runs the receipt pipeline over OCR output
type Analyzer struct {
	profile    Profile
	classifier *classify.Classifier
}

// NewAnalyzer creates an Analyzer for the given profile
func NewAnalyzer(p Profile) *Analyzer {
	return &Analyzer{profile: p, classifier: classify.New(p.Classifier)}
}

// Profile returns the analyzer's settings
func (a *Analyzer) Profile() Profile {
	return a.profile
}

func (a *Analyzer) prepare(words []ocr.WordBox) []ocr.WordBox {
	if a.profile.NormalizeWidth {
		words = ocr.Normalize(words)
	}
	out := make([]ocr.WordBox, len(words))
	for i, w := range words {
		out[i] = w.Repadded(a.profile.PadX, a.profile.PadY)
	}
	return out
}

// Analyze splits words into receipts and builds a Region for each. photo may
// be nil, in which case regions carry no crop.
func (a *Analyzer) Analyze(words []ocr.WordBox, photo image.Image) []*Region {
	words = a.prepare(words)
	split := layout.SplitReceipts(words)
	regions := make([]*Region, 0, len(split.Clusters))
	for _, c := range split.Clusters {
		regions = append(regions, newRegion(words, c.Members, photo, a.classifier))
	}
	return regions
}

// AnalyzeOne treats every word as part of a single receipt. It is used when
// re-reading an already separated receipt.
func (a *Analyzer) AnalyzeOne(words []ocr.WordBox, photo image.Image) *Region {
	words = a.prepare(words)
	members := make([]int, len(words))
	for i := range members {
		members[i] = i
	}
	return newRegion(words, members, photo, a.classifier)
}

func newRegion(words []ocr.WordBox, members []int, photo image.Image, cls *classify.Classifier) *Region {
	var points []geom.Vec2
	for _, m := range members {
		points = append(points, words[m].Poly...)
	}
	hull := geom.ConvexHull(points)
	cut := crop.Extract(photo, hull)

	lines := layout.BuildLines(words, layout.GroupLines(words, members))
	axes := layout.EstimateAxes(lines)
	r := &Region{
		Lines:           lines,
		Origin:          geom.Vec2{X: float64(cut.Origin.X), Y: float64(cut.Origin.Y)},
		Hull:            cut.Hull,
		Axes:            axes,
		VerticalSpacing: layout.EstimateVerticalSpacing(lines),
		Image:           cut.Image,
		classifier:      cls,
		width:           float64(cut.Width),
	}
	layout.SortLines(r.Lines, axes)
	r.Reclassify()
	return r
}

// Angle returns the receipt's skew in radians
func (r *Region) Angle() float64 {
	return r.Axes.Angle()
}

// Reclassify relabels every word from scratch, discarding manual labels,
// and rebuilds the record
func (r *Region) Reclassify() {
	r.labels = r.classifier.Classify(classify.Input{
		Lines:  r.Lines,
		Origin: r.Origin,
		Width:  r.width,
	})
	r.edited = make(map[classify.Coord]bool)
	r.rebuild()
}

func (r *Region) rebuild() {
	r.record = Assemble(r.Lines, r.labels)
	r.stale = false
	clear(r.edited)
	slog.Debug("Assembled receipt", "shop", r.record.ShopName, "date", r.record.Date.String(), "items", len(r.record.Items))
}

func (r *Region) checkCoord(line, word int) error {
	if line < 0 || line >= len(r.Lines) || word < 0 || word >= len(r.Lines[line]) {
		return fmt.Errorf("%w: line %d word %d", ErrWordIndex, line, word)
	}
	return nil
}

// Label returns the label of one word
func (r *Region) Label(line, word int) (classify.Label, error) {
	if err := r.checkCoord(line, word); err != nil {
		return classify.Unassigned, err
	}
	return r.labels[classify.Coord{Line: line, Word: word}], nil
}

// Labels returns a copy of every word's label
func (r *Region) Labels() classify.LabelMap {
	return r.labels.Clone()
}

// SetLabel overrides one word's label. The record is rebuilt on next read,
// which drops any edits made to it.
func (r *Region) SetLabel(line, word int, label classify.Label) error {
	if err := r.checkCoord(line, word); err != nil {
		return err
	}
	c := classify.Coord{Line: line, Word: word}
	r.labels[c] = label
	r.edited[c] = true
	r.stale = true
	return nil
}

// Edited returns the words relabeled since the record was last built, in
// reading order
func (r *Region) Edited() []classify.Coord {
	out := make([]classify.Coord, 0, len(r.edited))
	for c := range r.edited {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// current returns the live record, rebuilding it first if labels changed
func (r *Region) current() *PurchaseRecord {
	if r.stale {
		r.rebuild()
	}
	return &r.record
}

// Record returns a copy of the receipt's record
func (r *Region) Record() PurchaseRecord {
	return r.current().Clone()
}

// SetItemHidden hides or restores one item. Hidden items are left out of
// totals and commits.
func (r *Region) SetItemHidden(item int, hidden bool) error {
	rec := r.current()
	if item < 0 || item >= len(rec.Items) {
		return fmt.Errorf("%w: item %d", ErrEditTarget, item)
	}
	rec.Items[item].Hidden = hidden
	return nil
}

// WordCount returns the number of words on the receipt
func (r *Region) WordCount() int {
	n := 0
	for _, l := range r.Lines {
		n += len(l)
	}
	return n
}
