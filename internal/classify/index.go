package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/zombor/receipt-ocr/internal/layout"
)

// TextIndex is the concatenated text of a receipt in reading order, with a
// back-reference from every character to the word that produced it.
// Positions are counted in characters (runes), not bytes.
type TextIndex struct {
	text       string
	back       []Coord
	byteToRune []int
}

// BuildIndex concatenates every word of lines, in order. Invalid UTF-8 in a
// word is replaced with U+FFFD so bytes of adjacent words never combine.
func BuildIndex(lines []layout.Line) *TextIndex {
	var sb strings.Builder
	var back []Coord
	for li, line := range lines {
		for wi, w := range line {
			text := w.Text
			if !utf8.ValidString(text) {
				text = strings.ToValidUTF8(text, string(utf8.RuneError))
			}
			sb.WriteString(text)
			for range text {
				back = append(back, Coord{Line: li, Word: wi})
			}
		}
	}

	text := sb.String()
	byteToRune := make([]int, len(text)+1)
	r := 0
	for b := range text {
		byteToRune[b] = r
		r++
	}
	byteToRune[len(text)] = r

	return &TextIndex{text: text, back: back, byteToRune: byteToRune}
}

// Text returns the concatenated text
func (t *TextIndex) Text() string {
	return t.text
}

// Len returns the number of characters in the text
func (t *TextIndex) Len() int {
	return len(t.back)
}

// At returns the word that produced character i
func (t *TextIndex) At(i int) Coord {
	return t.back[i]
}

// Span converts a byte range of Text, as returned by the regexp package, to a
// character range
func (t *TextIndex) Span(byteStart, byteEnd int) (int, int) {
	return t.byteToRune[byteStart], t.byteToRune[byteEnd]
}

// Words returns the distinct words covering characters [start, end), in order
func (t *TextIndex) Words(start, end int) []Coord {
	var out []Coord
	for i := start; i < end; i++ {
		c := t.back[i]
		if len(out) == 0 || out[len(out)-1] != c {
			out = append(out, c)
		}
	}
	return out
}

