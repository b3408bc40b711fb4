package receipt

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Field names a part of a PurchaseRecord that can be edited
type Field int

const (
	FieldShopName Field = iota
	// FieldDate: Index 0 is the year, 1 the month, 2 the day
	FieldDate
	// FieldTime: Index 0 is the hour, 1 the minute
	FieldTime
	// FieldItemName: Index is the item
	FieldItemName
	// FieldPrice: Index is the item; Sub 0 is the price, Sub n the n-th discount
	FieldPrice
)

var fieldNames = map[Field]string{
	FieldShopName: "shop_name",
	FieldDate:     "date",
	FieldTime:     "time",
	FieldItemName: "item_name",
	FieldPrice:    "price",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseField returns the Field with the given name
func ParseField(s string) (Field, error) {
	for f, name := range fieldNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown field %q", ErrEditTarget, s)
}

// EditTarget is the edit a session is waiting on: NoEdit or Editing
type EditTarget interface {
	isEditTarget()
}

// NoEdit means nothing is being edited
type NoEdit struct{}

// Editing addresses the value being edited
type Editing struct {
	Field Field
	Index int
	Sub   int
}

func (NoEdit) isEditTarget()  {}
func (Editing) isEditTarget() {}

// Session holds the receipts found in one photo while they are reviewed
type Session struct {
	ID        string
	PhotoPath string
	CreatedAt time.Time
	Regions   []*Region

	focus   int
	pending EditTarget
}

// NewSession creates a Session focused on the first receipt
func NewSession(id string, regions []*Region) *Session {
	return &Session{ID: id, Regions: regions, pending: NoEdit{}}
}

// Region returns the i-th receipt
func (s *Session) Region(i int) (*Region, error) {
	if i < 0 || i >= len(s.Regions) {
		return nil, fmt.Errorf("%w: %d of %d", ErrRegionIndex, i, len(s.Regions))
	}
	return s.Regions[i], nil
}

// Focus returns the index of the focused receipt
func (s *Session) Focus() int {
	return s.focus
}

// SetFocus focuses the i-th receipt, dropping any pending edit
func (s *Session) SetFocus(i int) error {
	if _, err := s.Region(i); err != nil {
		return err
	}
	if i != s.focus {
		s.pending = NoEdit{}
	}
	s.focus = i
	return nil
}

// Next moves focus to the following receipt, wrapping around
func (s *Session) Next() {
	s.move(1)
}

// Prev moves focus to the preceding receipt, wrapping around
func (s *Session) Prev() {
	s.move(-1)
}

func (s *Session) move(delta int) {
	n := len(s.Regions)
	if n == 0 {
		return
	}
	s.SetFocus(((s.focus+delta)%n + n) % n)
}

// ReplaceRegion swaps in a re-read receipt
func (s *Session) ReplaceRegion(i int, r *Region) error {
	if _, err := s.Region(i); err != nil {
		return err
	}
	s.Regions[i] = r
	if i == s.focus {
		s.pending = NoEdit{}
	}
	return nil
}

// Pending returns the edit waiting to be confirmed
func (s *Session) Pending() EditTarget {
	return s.pending
}

// Begin starts editing a value of the focused receipt's record
func (s *Session) Begin(target Editing) error {
	r, err := s.Region(s.focus)
	if err != nil {
		return err
	}
	if err := validTarget(r.current(), target); err != nil {
		return err
	}
	s.pending = target
	return nil
}

// Cancel drops the pending edit
func (s *Session) Cancel() {
	s.pending = NoEdit{}
}

// Confirm applies text to the pending edit. Numeric fields ignore text that
// is not an integer and keep their value; dates and times are clamped to
// their valid ranges.
func (s *Session) Confirm(text string) error {
	target, ok := s.pending.(Editing)
	if !ok {
		return fmt.Errorf("%w: nothing is being edited", ErrEditTarget)
	}
	s.pending = NoEdit{}

	r, err := s.Region(s.focus)
	if err != nil {
		return err
	}
	rec := r.current()
	if err := validTarget(rec, target); err != nil {
		return err
	}

	if target.Field == FieldShopName {
		rec.ShopName = text
		return nil
	}
	if target.Field == FieldItemName {
		rec.Items[target.Index].Name = text
		rec.Items[target.Index].HasName = true
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		slog.Debug("Ignoring non-numeric edit", "field", target.Field.String(), "text", text)
		return nil
	}
	switch target.Field {
	case FieldDate:
		// An unset date takes the defaults for the parts not being edited
		if rec.Date.IsZero() {
			rec.Date = Date{Year: defaultYear, Month: defaultMonth, Day: defaultDay}
		}
		switch target.Index {
		case 0:
			rec.Date.Year = clamp(n, 0, 9999)
		case 1:
			rec.Date.Month = clamp(n, 1, 12)
		case 2:
			rec.Date.Day = clamp(n, 1, 31)
		}
	case FieldTime:
		if target.Index == 0 {
			rec.Hour = clamp(n, 0, 23)
		} else {
			rec.Minute = clamp(n, 0, 59)
		}
	case FieldPrice:
		item := &rec.Items[target.Index]
		if target.Sub == 0 {
			item.Price = n
			item.HasPrice = true
		} else {
			item.Discounts[target.Sub-1] = n
		}
	}
	return nil
}

func validTarget(rec *PurchaseRecord, t Editing) error {
	bad := fmt.Errorf("%w: %s index %d sub %d", ErrEditTarget, t.Field, t.Index, t.Sub)
	switch t.Field {
	case FieldShopName:
		return nil
	case FieldDate:
		if t.Index < 0 || t.Index > 2 {
			return bad
		}
	case FieldTime:
		if t.Index < 0 || t.Index > 1 {
			return bad
		}
	case FieldItemName, FieldPrice:
		if t.Index < 0 || t.Index >= len(rec.Items) {
			return bad
		}
		if t.Field == FieldPrice && (t.Sub < 0 || t.Sub > len(rec.Items[t.Index].Discounts)) {
			return bad
		}
	default:
		return bad
	}
	return nil
}
