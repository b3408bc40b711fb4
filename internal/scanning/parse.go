package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/zombor/receipt-ocr/internal/ocr"
)

// wordBoxPrompt is the shared prompt used by all LLM providers for reading receipt words
const wordBoxPrompt = `You are an OCR engine reading one or more Japanese shop receipts in a photo.
Find every word or short run of characters printed on the receipts and report where it is.

Return ONLY valid JSON in this exact format:
{
  "words": [
    {"text": "ローソン", "box_2d": [ymin, xmin, ymax, xmax]}
  ]
}

Important:
- box_2d coordinates are integers normalized to 0-1000 over the image height and width
- Keep prices, dates and times as separate words exactly as printed (e.g. "¥1,280", "2024年1月15日", "10:30")
- Copy the text exactly; do not translate or correct it
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// llmWords is the JSON returned by LLM providers
type llmWords struct {
	Words []struct {
		Text string    `json:"text"`
		Box  []float64 `json:"box_2d"`
	} `json:"words"`
}

// extractJSON trims code fences and anything outside the outermost object
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// parseWordsJSON parses an LLM word list and scales its normalized boxes to
// an image of width x height pixels. Entries with blank text or a malformed
// box are skipped.
func parseWordsJSON(text string, width, height int) ([]ocr.WordBox, error) {
	text, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var data llmWords
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	sx := float64(width) / 1000
	sy := float64(height) / 1000
	words := make([]ocr.WordBox, 0, len(data.Words))
	for _, w := range data.Words {
		t := strings.TrimSpace(w.Text)
		if t == "" || len(w.Box) != 4 {
			continue
		}
		ymin, xmin, ymax, xmax := w.Box[0]*sy, w.Box[1]*sx, w.Box[2]*sy, w.Box[3]*sx
		if xmax < xmin {
			xmin, xmax = xmax, xmin
		}
		if ymax < ymin {
			ymin, ymax = ymax, ymin
		}
		words = append(words, ocr.NewWordBox(ocr.Quad(xmin, ymin, xmax, ymax), t))
	}
	return words, nil
}

// imageSize returns the pixel size of an encoded image
func imageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading image size: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
