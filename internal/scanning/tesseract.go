package scanning

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/receipt-ocr/internal/ocr"
)

// Tesseract implements the Recognizer interface with a local Tesseract
// install
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract Recognizer. With no languages it reads
// Japanese.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"jpn"}
	}
	return &Tesseract{languages: languages}
}

// Recognize reads word-level boxes. A client is created per call because
// gosseract clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) ([]ocr.WordBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("reading word boxes: %w", err)
	}

	words := make([]ocr.WordBox, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		r := box.Box
		words = append(words, ocr.NewWordBox(
			ocr.Quad(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)),
			box.Word,
		))
	}
	return words, nil
}

// Close is a no-op
func (t *Tesseract) Close() error {
	return nil
}
