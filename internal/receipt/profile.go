package receipt

import (
	"fmt"
	"os"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/ocr"
	"gopkg.in/yaml.v3"
)

// Profile tunes the receipt pipeline
type Profile struct {
	// PadX and PadY grow each word's bounds before receipts are split
	PadX float64 `yaml:"pad_x" json:"pad_x"`
	PadY float64 `yaml:"pad_y" json:"pad_y"`
	// NormalizeWidth folds full-width characters before classification
	NormalizeWidth bool            `yaml:"normalize_width" json:"normalize_width"`
	Classifier     classify.Config `yaml:"classifier" json:"classifier"`
}

// DefaultProfile returns the stock settings
func DefaultProfile() Profile {
	return Profile{
		PadX:           ocr.DefaultPadX,
		PadY:           ocr.DefaultPadY,
		NormalizeWidth: true,
		Classifier:     classify.DefaultConfig(),
	}
}

// LoadProfile reads a YAML profile. Keys missing from the file keep their
// default values.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}
