package classify

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/zombor/receipt-ocr/internal/geom"
	"github.com/zombor/receipt-ocr/internal/layout"
)

var (
	numberPattern = regexp.MustCompile(`^-?[1-9][0-9]*$`)
	// year, month and day, then an optional weekday in brackets and an
	// optional time of day
	datePattern     = regexp.MustCompile(`\d{4}[年/]\d{1,2}[月/]\d{1,2}日?(?:[(（][月火水木金土日][)）])?(?:\s*\d{1,2}[:時]\d{2}分?)?`)
	timePattern     = regexp.MustCompile(`\d\d:\d\d`)
	shopPattern     = regexp.MustCompile(`[a-zA-Z\p{Katakana}\p{Han}ーｰ\-～~^店]+店`)
	pricePattern    = regexp.MustCompile(`[*¥][0-9]+`)
	itemNamePattern = regexp.MustCompile(`^[^*¥◆■]+$`)
)

// Input is one receipt to classify
type Input struct {
	// Lines in reading order
	Lines []layout.Line
	// Origin is the top-left of the receipt's crop in photo coordinates
	Origin geom.Vec2
	// Width is the width of the receipt's crop
	Width float64
}

// Classifier labels receipt words. It is safe for concurrent use.
type Classifier struct {
	cfg    Config
	ignore *regexp.Regexp
	passes []pass
}

type pass struct {
	name  string
	apply func(*run)
}

// run is the state of one classification
type run struct {
	in     Input
	index  *TextIndex
	labels LabelMap
}

// New creates a Classifier
func New(cfg Config) *Classifier {
	c := &Classifier{cfg: cfg}
	if len(cfg.IgnoreKeywords) > 0 {
		quoted := make([]string, len(cfg.IgnoreKeywords))
		for i, k := range cfg.IgnoreKeywords {
			quoted[i] = regexp.QuoteMeta(k)
		}
		c.ignore = regexp.MustCompile(strings.Join(quoted, "|"))
	}

	// Later passes overwrite earlier ones, so the order matters
	c.passes = []pass{
		{"number", c.numberPass},
		{"date", datePass},
		{"time", timePass},
		{"shop_name", shopPass},
		{"price", pricePass},
		{"item_name", itemNamePass},
		{"ignore", c.ignorePass},
	}
	return c
}

// Classify labels every word of in. Every word is present in the result,
// Unassigned unless a pass claimed it.
func (c *Classifier) Classify(in Input) LabelMap {
	r := &run{
		in:     in,
		index:  BuildIndex(in.Lines),
		labels: make(LabelMap),
	}
	for li, line := range in.Lines {
		for wi := range line {
			r.labels[Coord{Line: li, Word: wi}] = Unassigned
		}
	}
	for _, p := range c.passes {
		p.apply(r)
		slog.Debug("Classification pass complete", "pass", p.name, "assigned", r.assigned())
	}
	return r.labels
}

func (r *run) assigned() int {
	n := 0
	for _, l := range r.labels {
		if l != Unassigned {
			n++
		}
	}
	return n
}

func (r *run) topLeft(c Coord) geom.Vec2 {
	return r.in.Lines[c.Line][c.Word].TopLeft()
}

// first returns the character span of re's leftmost match in the text
func (r *run) first(re *regexp.Regexp) (int, int, bool) {
	loc := re.FindStringIndex(r.index.Text())
	if loc == nil {
		return 0, 0, false
	}
	start, end := r.index.Span(loc[0], loc[1])
	return start, end, true
}

// all returns the character spans of every non-overlapping match of re
func (r *run) all(re *regexp.Regexp) [][2]int {
	var spans [][2]int
	for _, loc := range re.FindAllStringIndex(r.index.Text(), -1) {
		start, end := r.index.Span(loc[0], loc[1])
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

func (r *run) mark(start, end int, label Label) {
	for _, c := range r.index.Words(start, end) {
		r.labels[c] = label
	}
}

// numberPass marks bare integers sitting in the right-hand price column
func (c *Classifier) numberPass(r *run) {
	threshold := r.in.Width * c.cfg.RightColumnRatio
	for li, line := range r.in.Lines {
		for wi, w := range line {
			if w.TopLeft().X-r.in.Origin.X > threshold && numberPattern.MatchString(w.Text) {
				r.labels[Coord{Line: li, Word: wi}] = Number
			}
		}
	}
}

// datePass marks the first date. Numbers found before the date are almost
// always noise, so they go back to Unassigned.
func datePass(r *run) {
	start, end, ok := r.first(datePattern)
	if !ok {
		return
	}
	r.mark(start, end, Date)
	for i := 0; i < start; i++ {
		c := r.index.At(i)
		if r.labels[c] == Number {
			r.labels[c] = Unassigned
		}
	}
}

// timePass marks the first time of day not already claimed by the date
func timePass(r *run) {
	for _, span := range r.all(timePattern) {
		words := r.index.Words(span[0], span[1])
		var free []Coord
		for _, c := range words {
			if r.labels[c] != Date {
				free = append(free, c)
			}
		}
		if len(free) == 0 {
			continue
		}
		for _, c := range free {
			r.labels[c] = Time
		}
		return
	}
}

func shopPass(r *run) {
	if start, end, ok := r.first(shopPattern); ok {
		r.mark(start, end, ShopName)
	}
}

// pricePass marks every price. A match stops growing where the text jumps
// back to the left, since that is a line break inside the match.
func pricePass(r *run) {
	for _, span := range r.all(pricePattern) {
		for i := span[0]; i < span[1]; i++ {
			c := r.index.At(i)
			if i > span[0] && r.topLeft(c).X < r.topLeft(r.index.At(i-1)).X {
				break
			}
			r.labels[c] = Price
		}
	}
}

// itemNamePass walks each multi-word line from the right. Once a price or
// number is seen, the words to its left are item names until a date or
// shop name. A word starting with '-' before that point marks a discount
// row, which has no name.
func itemNamePass(r *run) {
	for li, line := range r.in.Lines {
		if len(line) < 2 {
			continue
		}
		naming := false
		for wi := len(line) - 1; wi >= 0; wi-- {
			c := Coord{Line: li, Word: wi}
			label := r.labels[c]
			if naming {
				if label == Date || label == ShopName {
					break
				}
				if itemNamePattern.MatchString(line[wi].Text) {
					r.labels[c] = LineItemName
				}
				continue
			}
			if label == Price || label == Number {
				naming = true
			}
			if strings.HasPrefix(line[wi].Text, "-") {
				break
			}
		}
	}
}

// ignorePass marks everything from the first footer keyword to the end
func (c *Classifier) ignorePass(r *run) {
	if c.ignore == nil {
		return
	}
	start, _, ok := r.first(c.ignore)
	if !ok {
		return
	}
	r.mark(start, r.index.Len(), Ignore)
}
