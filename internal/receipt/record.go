package receipt

import (
	"errors"
	"fmt"

	"github.com/zombor/receipt-ocr/internal/geom"
)

var (
	// ErrNotFound is returned when a session, image or registration does not exist
	ErrNotFound = errors.New("not found")
	// ErrRegionIndex is returned for a receipt index outside the session
	ErrRegionIndex = errors.New("receipt index out of range")
	// ErrWordIndex is returned for a line/word coordinate outside the receipt
	ErrWordIndex = errors.New("word index out of range")
	// ErrEditTarget is returned when an edit names a field or item the record does not have
	ErrEditTarget = errors.New("invalid edit target")
	// ErrIncomplete is returned when committing a record without a date or items
	ErrIncomplete = errors.New("record is incomplete")
	// ErrInvalidInput is returned for a malformed date or month argument
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy is returned when a receipt is re-read while another OCR call for
	// the same session is outstanding
	ErrBusy = errors.New("ocr already in progress")
)

// Date is a calendar date as printed on a receipt. The zero Date means no
// date was found.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// IsZero reports whether d is unset
func (d Date) IsZero() bool {
	return d == Date{}
}

// Valid reports whether every part of d is in range
func (d Date) Valid() bool {
	return d.Year >= 0 && d.Year <= 9999 &&
		d.Month >= 1 && d.Month <= 12 &&
		d.Day >= 1 && d.Day <= 31
}

// String formats d as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Japanese formats d as it is written in stored rows, e.g. 2024年01月15日
func (d Date) Japanese() string {
	return fmt.Sprintf("%04d年%02d月%02d日", d.Year, d.Month, d.Day)
}

// MonthKey names the monthly ledger d belongs to, e.g. 2024年01月.csv
func (d Date) MonthKey() string {
	return MonthKey(d.Year, d.Month)
}

// MonthKey names the monthly ledger for year and month
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d年%02d月.csv", year, month)
}

// LineItem is one purchased item
type LineItem struct {
	Name      string `json:"name"`
	Price     int    `json:"price"`
	Discounts []int  `json:"discounts"`
	HasName   bool   `json:"has_name"`
	HasPrice  bool   `json:"has_price"`
	Hidden    bool   `json:"hidden"`

	// Where the name, price and each discount were read from, in photo coordinates
	NameRegion      geom.Rect   `json:"name_region"`
	PriceRegion     geom.Rect   `json:"price_region"`
	DiscountRegions []geom.Rect `json:"discount_regions"`
}

// Total returns the price after discounts
func (i LineItem) Total() int {
	total := i.Price
	for _, d := range i.Discounts {
		total += d
	}
	return total
}

// PurchaseRecord is the structured content of one receipt
type PurchaseRecord struct {
	ShopName string     `json:"shop_name"`
	Date     Date       `json:"date"`
	Hour     int        `json:"hour"`
	Minute   int        `json:"minute"`
	Items    []LineItem `json:"items"`
}

// ID identifies the receipt by its purchase date and time
func (r PurchaseRecord) ID() string {
	return fmt.Sprintf("ID%04d%02d%02d%02d%02d", r.Date.Year, r.Date.Month, r.Date.Day, r.Hour, r.Minute)
}

// Total returns the sum of visible items after discounts
func (r PurchaseRecord) Total() int {
	total := 0
	for _, item := range r.Items {
		if !item.Hidden {
			total += item.Total()
		}
	}
	return total
}

// Clone returns a deep copy of r
func (r PurchaseRecord) Clone() PurchaseRecord {
	out := r
	out.Items = make([]LineItem, len(r.Items))
	for i, item := range r.Items {
		item.Discounts = append([]int(nil), item.Discounts...)
		item.DiscountRegions = append([]geom.Rect(nil), item.DiscountRegions...)
		out.Items[i] = item
	}
	return out
}
