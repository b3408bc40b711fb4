package ocr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zombor/receipt-ocr/internal/geom"
)

// ErrMalformed is returned when an OCR result stream is short or contains
// a value that does not parse
var ErrMalformed = errors.New("malformed OCR result")

// ReadResult parses the line-oriented OCR result format:
//
//	<word count>
//	  <vertex count>
//	  <x>
//	  <y>          (repeated per vertex)
//	  <text>
//
// Trailing carriage returns are stripped from every line. A missing count,
// coordinate or text line is an error; an empty text line is empty text.
// Each word is padded with the default padding.
func ReadResult(r io.Reader) ([]WordBox, error) {
	lr := &lineReader{scanner: bufio.NewScanner(r)}
	lr.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	count, err := lr.int("word count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative word count %d", ErrMalformed, count)
	}

	words := make([]WordBox, 0, count)
	for i := 0; i < count; i++ {
		vertices, err := lr.int(fmt.Sprintf("vertex count of word %d", i))
		if err != nil {
			return nil, err
		}
		if vertices < 0 {
			return nil, fmt.Errorf("%w: negative vertex count %d for word %d", ErrMalformed, vertices, i)
		}

		poly := make([]geom.Vec2, 0, vertices)
		for v := 0; v < vertices; v++ {
			p, err := lr.vertex(i, v)
			if err != nil {
				return nil, err
			}
			poly = append(poly, p)
		}

		text, err := lr.line(fmt.Sprintf("text of word %d", i))
		if err != nil {
			return nil, err
		}
		words = append(words, NewWordBox(poly, text))
	}
	return words, nil
}

// WriteResult writes words in the format read by ReadResult. Coordinates are
// rounded to integers.
func WriteResult(w io.Writer, words []WordBox) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(words))
	for _, word := range words {
		fmt.Fprintf(bw, "%d\n", len(word.Poly))
		for _, p := range word.Poly {
			fmt.Fprintf(bw, "%d\n%d\n", roundInt(p.X), roundInt(p.Y))
		}
		fmt.Fprintf(bw, "%s\n", strings.ReplaceAll(word.Text, "\n", " "))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing OCR result: %w", err)
	}
	return nil
}

func roundInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

type lineReader struct {
	scanner *bufio.Scanner
	lineNo  int
}

func (lr *lineReader) line(what string) (string, error) {
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", what, err)
		}
		return "", fmt.Errorf("%w: missing %s after line %d", ErrMalformed, what, lr.lineNo)
	}
	lr.lineNo++
	return strings.TrimRight(lr.scanner.Text(), "\r"), nil
}

func (lr *lineReader) int(what string) (int, error) {
	s, err := lr.line(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %s %q is not an integer", ErrMalformed, lr.lineNo, what, s)
	}
	return n, nil
}

func (lr *lineReader) vertex(word, index int) (geom.Vec2, error) {
	x, err := lr.int(fmt.Sprintf("x of vertex %d of word %d", index, word))
	if err != nil {
		return geom.Vec2{}, err
	}
	y, err := lr.int(fmt.Sprintf("y of vertex %d of word %d", index, word))
	if err != nil {
		return geom.Vec2{}, err
	}
	return geom.Vec2{X: float64(x), Y: float64(y)}, nil
}
