// Package classify assigns a semantic label to every word of a receipt by
// running an ordered list of pattern passes over the receipt's text.
package classify

import "fmt"

// Label is the role a word plays on a receipt
type Label int

const (
	Unassigned Label = iota
	ShopName
	Date
	Time
	LineItemName
	Price
	Number
	Ignore
)

var labelNames = [...]string{
	Unassigned:   "unassigned",
	ShopName:     "shop_name",
	Date:         "date",
	Time:         "time",
	LineItemName: "item_name",
	Price:        "price",
	Number:       "number",
	Ignore:       "ignore",
}

// Labels lists every label in declaration order
var Labels = []Label{Unassigned, ShopName, Date, Time, LineItemName, Price, Number, Ignore}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel returns the Label with the given name
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return Unassigned, fmt.Errorf("unknown label %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Coord addresses a word by its line and its position within the line
type Coord struct {
	Line int `json:"line"`
	Word int `json:"word"`
}

// LabelMap maps every word of a receipt to its label
type LabelMap map[Coord]Label

// Clone returns an independent copy of m
func (m LabelMap) Clone() LabelMap {
	out := make(LabelMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
