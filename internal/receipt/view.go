package receipt

import (
	"time"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/geom"
)

// WordView is one word as shown to a reviewer
type WordView struct {
	Text  string         `json:"text"`
	Label classify.Label `json:"label"`
	Box   geom.Rect      `json:"box"`
}

// RegionView summarizes one receipt of a session
type RegionView struct {
	Index           int              `json:"index"`
	Origin          geom.Vec2        `json:"origin"`
	Angle           float64          `json:"angle"`
	VerticalSpacing int              `json:"vertical_spacing"`
	HasImage        bool             `json:"has_image"`
	Lines           [][]WordView     `json:"lines"`
	Edited          []classify.Coord `json:"edited"`
	Record          PurchaseRecord   `json:"record"`
	ID              string           `json:"id"`
	Total           int              `json:"total"`
}

// EditingView is the value a session is waiting on
type EditingView struct {
	Field string `json:"field"`
	Index int    `json:"index"`
	Sub   int    `json:"sub"`
}

// SessionView summarizes a session. Editing is nil when nothing is being
// edited.
type SessionView struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Focus     int          `json:"focus"`
	Editing   *EditingView `json:"editing"`
	Regions   []RegionView `json:"regions"`
}

// View summarizes the region. Edited coordinates are read before the record
// so relabels since the last rebuild are still reported.
func (r *Region) View(index int) RegionView {
	edited := r.Edited()
	rec := r.Record()
	labels := r.Labels()

	lines := make([][]WordView, len(r.Lines))
	for i, line := range r.Lines {
		words := make([]WordView, len(line))
		for j, w := range line {
			words[j] = WordView{
				Text:  w.Text,
				Label: labels[classify.Coord{Line: i, Word: j}],
				Box:   w.Bounds(),
			}
		}
		lines[i] = words
	}

	return RegionView{
		Index:           index,
		Origin:          r.Origin,
		Angle:           r.Angle(),
		VerticalSpacing: r.VerticalSpacing,
		HasImage:        r.Image != nil,
		Lines:           lines,
		Edited:          edited,
		Record:          rec,
		ID:              rec.ID(),
		Total:           rec.Total(),
	}
}

// View summarizes the session
func (s *Session) View() SessionView {
	regions := make([]RegionView, len(s.Regions))
	for i, r := range s.Regions {
		regions[i] = r.View(i)
	}
	var editing *EditingView
	if e, ok := s.Pending().(Editing); ok {
		editing = &EditingView{Field: e.Field.String(), Index: e.Index, Sub: e.Sub}
	}
	return SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Focus:     s.Focus(),
		Editing:   editing,
		Regions:   regions,
	}
}
