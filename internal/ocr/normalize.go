package ocr

import (
	"strings"

	"golang.org/x/text/width"
)

// NormalizeText folds full-width ASCII (digits, letters, ＊, ：, ／) to its
// narrow form and half-width katakana to full-width, so the classifier's
// patterns see one form of each character. Surrounding whitespace is trimmed.
func NormalizeText(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// Normalize returns a copy of words with NormalizeText applied to each text
func Normalize(words []WordBox) []WordBox {
	out := make([]WordBox, len(words))
	for i, w := range words {
		w.Text = NormalizeText(w.Text)
		out[i] = w
	}
	return out
}
