package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/layout"
)

type labeled struct {
	text  string
	label classify.Label
}

// build lays out labeled words one line per argument
func build(rows ...[]labeled) ([]layout.Line, classify.LabelMap) {
	lines := make([]layout.Line, len(rows))
	labels := make(classify.LabelMap)
	for li, row := range rows {
		for wi, w := range row {
			lines[li] = append(lines[li], at(float64(10+100*wi), float64(10+30*li), w.text))
			labels[classify.Coord{Line: li, Word: wi}] = w.label
		}
	}
	return lines, labels
}

var _ = Describe("Assemble", func() {
	var (
		lines  []layout.Line
		labels classify.LabelMap
		rec    PurchaseRecord
	)

	JustBeforeEach(func() {
		rec = Assemble(lines, labels)
	})

	When("assembling a labeled receipt", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"ABC", classify.ShopName}, {"店", classify.ShopName}},
				[]labeled{{"2024/1/15(月)", classify.Date}},
				[]labeled{{"9:05", classify.Time}},
				[]labeled{{"りんご", classify.LineItemName}, {"*¥150", classify.Price}},
				[]labeled{{"お茶", classify.LineItemName}, {"120", classify.Number}},
				[]labeled{{"合計", classify.Ignore}, {"*¥270", classify.Ignore}},
			)
		})

		It("should join the shop name words", func() {
			Expect(rec.ShopName).To(Equal("ABC店"))
		})

		It("should parse the date without the weekday", func() {
			Expect(rec.Date).To(Equal(Date{Year: 2024, Month: 1, Day: 15}))
		})

		It("should parse the time", func() {
			Expect(rec.Hour).To(Equal(9))
			Expect(rec.Minute).To(Equal(5))
		})

		It("should pair names with prices and skip ignored words", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].Name).To(Equal("りんご"))
			Expect(rec.Items[0].Price).To(Equal(150))
			Expect(rec.Items[1].Name).To(Equal("お茶"))
			Expect(rec.Items[1].Price).To(Equal(120))
			Expect(rec.Total()).To(Equal(270))
		})

		It("should record where each value was read", func() {
			Expect(rec.Items[0].NameRegion).To(Equal(lines[3][0].Bounds()))
			Expect(rec.Items[0].PriceRegion).To(Equal(lines[3][1].Bounds()))
		})

		It("should derive the receipt id", func() {
			Expect(rec.ID()).To(Equal("ID202401150905"))
		})
	})

	When("the date carries the time", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"2024年3月9日", classify.Date}, {"18時07分", classify.Date}},
			)
		})

		It("should split them", func() {
			Expect(rec.Date).To(Equal(Date{Year: 2024, Month: 3, Day: 9}))
			Expect(rec.Hour).To(Equal(18))
			Expect(rec.Minute).To(Equal(7))
		})
	})

	When("the time sits on its own line after the date", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"2024/02/29", classify.Date}},
				[]labeled{{"23:59", classify.Date}},
			)
		})

		It("should keep the date", func() {
			Expect(rec.Date).To(Equal(Date{Year: 2024, Month: 2, Day: 29}))
			Expect(rec.Hour).To(Equal(23))
			Expect(rec.Minute).To(Equal(59))
		})
	})

	When("a date component is out of range or unreadable", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"2024/13/x", classify.Date}},
			)
		})

		It("should clamp or fall back to the default", func() {
			Expect(rec.Date).To(Equal(Date{Year: 2024, Month: 12, Day: 1}))
		})
	})

	When("no word is labeled as a date", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"パン", classify.LineItemName}, {"*¥100", classify.Price}},
			)
		})

		It("should leave the date unset and the time at midnight", func() {
			Expect(rec.Date.IsZero()).To(BeTrue())
			Expect(rec.Hour).To(Equal(0))
			Expect(rec.Minute).To(Equal(0))
		})
	})

	When("a price arrives before its name", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"*¥300", classify.Price}},
				[]labeled{{"牛乳", classify.LineItemName}},
			)
		})

		It("should fill the same item", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Name).To(Equal("牛乳"))
			Expect(rec.Items[0].Price).To(Equal(300))
			Expect(rec.Items[0].HasName).To(BeTrue())
			Expect(rec.Items[0].HasPrice).To(BeTrue())
		})
	})

	When("a zero price is read", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"袋", classify.LineItemName}, {"*¥0", classify.Price}},
				[]labeled{{"パン", classify.LineItemName}, {"*¥100", classify.Price}},
			)
		})

		It("should still count as the item's price", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].Price).To(Equal(0))
			Expect(rec.Items[1].Price).To(Equal(100))
		})
	})

	When("discounts follow an item", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"弁当", classify.LineItemName}, {"*¥500", classify.Price}},
				[]labeled{{"値引", classify.Unassigned}, {"-100", classify.Number}},
				[]labeled{{"割引", classify.Unassigned}, {"-50", classify.Number}},
			)
		})

		It("should attach the first to the item and start a new item for the second", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].Discounts).To(Equal([]int{-100}))
			Expect(rec.Items[0].Total()).To(Equal(400))
			Expect(rec.Items[1].Discounts).To(Equal([]int{-50}))
			Expect(rec.Items[1].HasName).To(BeFalse())
			Expect(rec.Total()).To(Equal(350))
		})
	})

	When("a price does not parse", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"水", classify.LineItemName}, {"*¥1O0", classify.Price}},
			)
		})

		It("should read it as zero", func() {
			Expect(rec.Items[0].Price).To(Equal(0))
		})
	})

	When("the labels are assembled twice", func() {
		BeforeEach(func() {
			lines, labels = build(
				[]labeled{{"りんご", classify.LineItemName}, {"*¥150", classify.Price}},
			)
		})

		It("should give the same record", func() {
			Expect(Assemble(lines, labels)).To(Equal(rec))
		})
	})
})

var _ = Describe("parseClock", func() {
	It("should keep the previous values when nothing parses", func() {
		h, m := parseClock("レジ", 7, 8)
		Expect(h).To(Equal(7))
		Expect(m).To(Equal(8))
	})

	It("should clamp the hour and minute", func() {
		h, m := parseClock("25:75", 0, 0)
		Expect(h).To(Equal(23))
		Expect(m).To(Equal(59))
	})
})
