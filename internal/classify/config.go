package classify

// Config tunes the classifier's heuristics
type Config struct {
	// RightColumnRatio is the fraction of the receipt width a word must start
	// beyond to be considered a bare number in the price column
	RightColumnRatio float64 `yaml:"right_column_ratio" json:"right_column_ratio"`

	// IgnoreKeywords start the footer; the first one found and everything
	// after it is ignored
	IgnoreKeywords []string `yaml:"ignore_keywords" json:"ignore_keywords"`
}

// DefaultConfig returns the settings tuned for Japanese retail receipts
func DefaultConfig() Config {
	return Config{
		RightColumnRatio: 0.6,
		IgnoreKeywords:   []string{"計", "外税", "軽減", "税率", "対象"},
	}
}
