package scanning

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/ocr"
)

var _ = Describe("Command", func() {
	var (
		script     string
		recognizer *Command
		words      []ocr.WordBox
		err        error
	)

	JustBeforeEach(func() {
		recognizer, err = NewCommand("sh", "-c", script)
		Expect(err).NotTo(HaveOccurred())
		words, err = recognizer.Recognize(context.Background(), pngOfSize(4, 4))
	})

	When("the program prints a result", func() {
		BeforeEach(func() {
			// $0 is the image path
			script = `test -s "$0" && printf '1\n4\n0\n0\n10\n0\n10\n5\n0\n5\nabc\n'`
		})

		It("should parse the words", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(words).To(HaveLen(1))
			Expect(words[0].Text).To(Equal("abc"))
		})
	})

	When("the program prints garbage", func() {
		BeforeEach(func() {
			script = `echo nope`
		})

		It("should return a malformed error", func() {
			Expect(err).To(MatchError(ocr.ErrMalformed))
		})
	})

	When("the program fails", func() {
		BeforeEach(func() {
			script = `exit 3`
		})

		It("should return the error", func() {
			Expect(err).To(MatchError(ContainSubstring("running sh")))
		})
	})

	It("should require a program", func() {
		_, err := NewCommand("")
		Expect(err).To(HaveOccurred())
	})
})
