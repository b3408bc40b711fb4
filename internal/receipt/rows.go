package receipt

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// RegisteredAtLayout formats the time a record was committed
const RegisteredAtLayout = "2006-01-02 15:04:05"

// Row is one stored purchase: an item of a committed receipt
type Row struct {
	ItemName     string `json:"item_name"`
	Price        int    `json:"price"`
	ShopName     string `json:"shop_name"`
	PurchaseDate string `json:"purchase_date"`
	RegisteredAt string `json:"registered_at"`
	ReceiptID    string `json:"receipt_id"`
}

// Registration is every row committed at one time
type Registration struct {
	RegisteredAt string `json:"registered_at"`
	Rows         []Row  `json:"rows"`
}

// Rows converts the visible items of r into stored rows. The row price is
// the item's price before discounts.
func (r PurchaseRecord) Rows(registeredAt time.Time) []Row {
	stamp := registeredAt.Format(RegisteredAtLayout)
	rows := make([]Row, 0, len(r.Items))
	for _, item := range r.Items {
		if item.Hidden {
			continue
		}
		rows = append(rows, Row{
			ItemName:     item.Name,
			Price:        item.Price,
			ShopName:     r.ShopName,
			PurchaseDate: r.Date.Japanese(),
			RegisteredAt: stamp,
			ReceiptID:    r.ID(),
		})
	}
	return rows
}

// GroupRegistrations groups rows bought on purchaseDate by when they were
// committed, newest first
func GroupRegistrations(rows []Row, purchaseDate string) []Registration {
	byTime := make(map[string][]Row)
	for _, row := range rows {
		if row.PurchaseDate != purchaseDate {
			continue
		}
		byTime[row.RegisteredAt] = append(byTime[row.RegisteredAt], row)
	}

	out := make([]Registration, 0, len(byTime))
	for at, rs := range byTime {
		out = append(out, Registration{RegisteredAt: at, Rows: rs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt > out[j].RegisteredAt })
	return out
}

// WriteCSV writes rows as item name, price, shop, purchase date,
// registered at, receipt id
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		record := []string{
			row.ItemName,
			strconv.Itoa(row.Price),
			row.ShopName,
			row.PurchaseDate,
			row.RegisteredAt,
			row.ReceiptID,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	return nil
}
