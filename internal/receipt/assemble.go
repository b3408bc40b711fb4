package receipt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/geom"
	"github.com/zombor/receipt-ocr/internal/layout"
)

// Components that fail to parse keep these
const (
	defaultYear  = 2024
	defaultMonth = 1
	defaultDay   = 1
)

var (
	clockPattern   = regexp.MustCompile(`\d{1,2}[:時]\d{2}分?`)
	weekdayPattern = regexp.MustCompile(`[(（][^)）]*[)）]`)
)

// lineText collects, for one line, the text of each label and where the
// item name and price were read from
type lineText struct {
	shop, date, clock, name, price strings.Builder
	nameBounds, priceBounds        geom.Rect
	hasNameBounds, hasPriceBounds  bool
}

// Assemble folds the labeled words of a receipt into a PurchaseRecord. It is
// rebuilt from scratch on every call.
func Assemble(lines []layout.Line, labels classify.LabelMap) PurchaseRecord {
	var rec PurchaseRecord
	for li, line := range lines {
		var lt lineText
		for wi, w := range line {
			switch labels[classify.Coord{Line: li, Word: wi}] {
			case classify.ShopName:
				lt.shop.WriteString(w.Text)
			case classify.Date:
				lt.date.WriteString(w.Text)
			case classify.Time:
				lt.clock.WriteString(w.Text)
			case classify.LineItemName:
				lt.name.WriteString(w.Text)
				lt.nameBounds, lt.hasNameBounds = extend(lt.nameBounds, lt.hasNameBounds, w.Bounds())
			case classify.Price, classify.Number:
				lt.price.WriteString(w.Text)
				lt.priceBounds, lt.hasPriceBounds = extend(lt.priceBounds, lt.hasPriceBounds, w.Bounds())
			}
		}
		rec.apply(&lt)
	}
	return rec
}

func extend(r geom.Rect, ok bool, o geom.Rect) (geom.Rect, bool) {
	if !ok {
		return o, true
	}
	return r.Union(o), true
}

func (rec *PurchaseRecord) apply(lt *lineText) {
	rec.ShopName += lt.shop.String()

	if s := lt.date.String(); s != "" {
		datePart, clockPart := splitDateTime(s)
		if datePart != "" {
			rec.Date = parseDate(datePart)
		}
		if clockPart != "" {
			rec.Hour, rec.Minute = parseClock(clockPart, rec.Hour, rec.Minute)
		}
	}
	if s := lt.clock.String(); s != "" {
		rec.Hour, rec.Minute = parseClock(s, rec.Hour, rec.Minute)
	}

	if name := lt.name.String(); name != "" {
		item := rec.firstItem(func(i LineItem) bool { return !i.HasName })
		item.Name = name
		item.HasName = true
		item.NameRegion = lt.nameBounds
	}

	if s := lt.price.String(); s != "" {
		price := parsePrice(s)
		if price < 0 {
			// a discount belongs to the last item unless that item already has one
			if len(rec.Items) == 0 || len(rec.Items[len(rec.Items)-1].Discounts) > 0 {
				rec.Items = append(rec.Items, LineItem{})
			}
			item := &rec.Items[len(rec.Items)-1]
			item.Discounts = append(item.Discounts, price)
			item.DiscountRegions = append(item.DiscountRegions, lt.priceBounds)
		} else {
			item := rec.firstItem(func(i LineItem) bool { return !i.HasPrice })
			item.Price = price
			item.HasPrice = true
			item.PriceRegion = lt.priceBounds
		}
	}
}

// firstItem returns the first item matching open, appending a new one if none does
func (rec *PurchaseRecord) firstItem(open func(LineItem) bool) *LineItem {
	for i := range rec.Items {
		if open(rec.Items[i]) {
			return &rec.Items[i]
		}
	}
	rec.Items = append(rec.Items, LineItem{})
	return &rec.Items[len(rec.Items)-1]
}

// splitDateTime separates a time of day and a bracketed weekday from a date string
func splitDateTime(s string) (string, string) {
	var clock string
	if loc := clockPattern.FindStringIndex(s); loc != nil {
		clock = s[loc[0]:loc[1]]
		s = s[:loc[0]] + s[loc[1]:]
	}
	return strings.TrimSpace(weekdayPattern.ReplaceAllString(s, "")), clock
}

// parseDate reads YYYY/M/D or YYYY年M月D日. Components are clamped; a
// component that does not parse keeps its default.
func parseDate(s string) Date {
	d := Date{Year: defaultYear, Month: defaultMonth, Day: defaultDay}
	var parts []string
	switch {
	case strings.Count(s, "/") == 2:
		parts = strings.Split(s, "/")
	case strings.Count(s, "年") == 1:
		year, rest, _ := strings.Cut(s, "年")
		parts = []string{year}
		if month, rest, ok := strings.Cut(rest, "月"); ok {
			parts = append(parts, month)
			if day, _, ok := strings.Cut(rest, "日"); ok {
				parts = append(parts, day)
			}
		}
	}

	if len(parts) > 0 {
		if n, ok := parseInt(parts[0]); ok {
			d.Year = clamp(n, 0, 9999)
		}
	}
	if len(parts) > 1 {
		if n, ok := parseInt(parts[1]); ok {
			d.Month = clamp(n, 1, 12)
		}
	}
	if len(parts) > 2 {
		if n, ok := parseInt(parts[2]); ok {
			d.Day = clamp(n, 1, 31)
		}
	}
	return d
}

// parseClock reads H:MM or H時MM分, keeping hour and minute where a part
// does not parse
func parseClock(s string, hour, minute int) (int, int) {
	var parts []string
	switch {
	case strings.Contains(s, ":"):
		parts = strings.Split(s, ":")
	case strings.Contains(s, "時"):
		h, m, _ := strings.Cut(s, "時")
		parts = []string{h, strings.TrimSuffix(m, "分")}
	default:
		return hour, minute
	}

	if n, ok := parseInt(parts[0]); ok {
		hour = clamp(n, 0, 23)
	}
	if len(parts) > 1 {
		if n, ok := parseInt(parts[1]); ok {
			minute = clamp(n, 0, 59)
		}
	}
	return hour, minute
}

// parsePrice strips price markers and parses the rest, giving 0 when it
// does not parse
func parsePrice(s string) int {
	s = strings.NewReplacer("*", "", "¥", "").Replace(s)
	n, ok := parseInt(s)
	if !ok {
		return 0
	}
	return n
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
