package ocr

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ReadHOCR extracts words from an hOCR document (as produced by Tesseract's
// hocr output). Every element with class ocrx_word and a bbox title becomes a
// WordBox; words with no text are skipped.
func ReadHOCR(r io.Reader) ([]WordBox, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing hOCR: %w", err)
	}

	var words []WordBox
	var walk func(n *html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && hasClass(n, "ocrx_word") {
			text := strings.TrimSpace(textContent(n))
			if text == "" {
				return nil
			}
			box, err := parseBBox(attr(n, "title"))
			if err != nil {
				return err
			}
			words = append(words, NewWordBox(Quad(box[0], box[1], box[2], box[3]), text))
			return nil
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc); err != nil {
		return nil, err
	}
	return words, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// parseBBox reads "bbox x0 y0 x1 y1" out of an hOCR title attribute
func parseBBox(title string) ([4]float64, error) {
	var box [4]float64
	for _, prop := range strings.Split(title, ";") {
		fields := strings.Fields(prop)
		if len(fields) == 0 || fields[0] != "bbox" {
			continue
		}
		if len(fields) != 5 {
			return box, fmt.Errorf("%w: bbox %q needs four values", ErrMalformed, prop)
		}
		for i := range box {
			v, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return box, fmt.Errorf("%w: bbox %q: %v", ErrMalformed, prop, err)
			}
			box[i] = float64(v)
		}
		return box, nil
	}
	return box, fmt.Errorf("%w: word title %q has no bbox", ErrMalformed, title)
}
