package scanning

import (
	"context"

	"github.com/zombor/receipt-ocr/internal/ocr"
)

// Recognizer finds the words in a photo
type Recognizer interface {
	// Recognize runs OCR over a PNG image and returns word boxes in image
	// pixel coordinates
	Recognize(ctx context.Context, png []byte) ([]ocr.WordBox, error)
	// Close closes the recognizer and releases resources
	Close() error
}
