package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/zombor/receipt-ocr/internal/ocr"
	"github.com/zombor/receipt-ocr/internal/receipt"
	"github.com/zombor/receipt-ocr/internal/scanning"
)

// runScan reads one photo with the recognizer and prints its receipts
func runScan(ctx context.Context, cfg config, recognizer scanning.Recognizer, analyzer *receipt.Analyzer) error {
	pngData, photo, err := loadPhoto(*cfg.scanPath)
	if err != nil {
		return err
	}

	words, err := recognizer.Recognize(ctx, pngData)
	if err != nil {
		return fmt.Errorf("recognizing %s: %w", *cfg.scanPath, err)
	}

	if *cfg.dumpPath != "" {
		if err := dumpWords(*cfg.dumpPath, words); err != nil {
			return err
		}
	}

	return printSession(os.Stdout, filepath.Base(*cfg.scanPath), analyzer.Analyze(words, photo))
}

// runOffline reads words from a saved result or hOCR file. With --scan the
// photo is loaded too so receipts carry their crops.
func runOffline(cfg config, analyzer *receipt.Analyzer) error {
	var (
		words []ocr.WordBox
		err   error
	)
	if *cfg.resultPath != "" {
		words, err = readWords(*cfg.resultPath, ocr.ReadResult)
	} else {
		words, err = readWords(*cfg.hocrPath, ocr.ReadHOCR)
	}
	if err != nil {
		return err
	}

	var photo image.Image
	if *cfg.scanPath != "" {
		if _, photo, err = loadPhoto(*cfg.scanPath); err != nil {
			return err
		}
	}

	slog.Debug("Read words", "count", len(words))
	return printSession(os.Stdout, "offline", analyzer.Analyze(words, photo))
}

func loadPhoto(path string) ([]byte, image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading photo: %w", err)
	}
	return scanning.PrepareImage(data, mime.TypeByExtension(filepath.Ext(path)))
}

func readWords(path string, read func(io.Reader) ([]ocr.WordBox, error)) ([]ocr.WordBox, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	words, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return words, nil
}

func dumpWords(path string, words []ocr.WordBox) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump: %w", err)
	}
	if err := ocr.WriteResult(f, words); err != nil {
		f.Close()
		return fmt.Errorf("writing dump: %w", err)
	}
	return f.Close()
}

func printSession(w io.Writer, id string, regions []*receipt.Region) error {
	view := receipt.NewSession(id, regions).View()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encoding receipts: %w", err)
	}
	return nil
}
