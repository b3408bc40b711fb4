package classify_test

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/layout"
)

var _ = Describe("TextIndex", func() {
	var (
		input []layout.Line
		index *classify.TextIndex
	)

	BeforeEach(func() {
		input = lines(
			layout.Line{at(10, 10, "ABC店")},
			layout.Line{at(10, 40, "りんご"), at(200, 40, "*¥150")},
			layout.Line{at(10, 70, "")},
		)
	})

	JustBeforeEach(func() {
		index = classify.BuildIndex(input)
	})

	It("should concatenate every word in order", func() {
		Expect(index.Text()).To(Equal("ABC店りんご*¥150"))
	})

	It("should map every character back to the word that produced it", func() {
		runes := []rune(index.Text())
		Expect(index.Len()).To(Equal(len(runes)))

		offset := 0
		var prev classify.Coord
		for i, r := range runes {
			c := index.At(i)
			if i == 0 || c != prev {
				offset = 0
			}
			wordRunes := []rune(input[c.Line][c.Word].Text)
			Expect(wordRunes[offset]).To(Equal(r))
			offset++
			prev = c
		}
	})

	It("should convert byte spans to character spans", func() {
		start, end := index.Span(len("ABC店"), len("ABC店りんご"))
		Expect(start).To(Equal(4))
		Expect(end).To(Equal(7))
	})

	It("should list each spanned word once", func() {
		Expect(index.Words(2, 9)).To(Equal([]classify.Coord{{Line: 0, Word: 0}, {Line: 1, Word: 0}, {Line: 1, Word: 1}}))
	})

	When("a character's bytes are split across two words", func() {
		BeforeEach(func() {
			// "あ" is e3 81 82
			input = lines(layout.Line{at(10, 10, "\xe3\x81"), at(60, 10, "\x82")})
		})

		It("should keep the words apart", func() {
			Expect(index.Text()).To(Equal("\uFFFD\uFFFD"))
			Expect(index.Len()).To(Equal(utf8.RuneCountInString(index.Text())))
			Expect(index.At(0)).To(Equal(classify.Coord{Line: 0, Word: 0}))
			Expect(index.At(1)).To(Equal(classify.Coord{Line: 0, Word: 1}))
		})

		It("should convert the end of the text to the last character", func() {
			_, end := index.Span(0, len(index.Text()))
			Expect(end).To(Equal(index.Len()))
		})
	})

	When("there are no lines", func() {
		BeforeEach(func() {
			input = nil
		})

		It("should be empty", func() {
			Expect(index.Text()).To(BeEmpty())
			Expect(index.Len()).To(BeZero())
		})
	})
})
