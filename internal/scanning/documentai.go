package scanning

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-ocr/internal/geom"
	"github.com/zombor/receipt-ocr/internal/ocr"
)

// DocumentAIConfig names a Document AI OCR processor
type DocumentAIConfig struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
}

// DocumentAI implements the Recognizer interface using a Google Document AI
// OCR processor. Each token becomes one word.
type DocumentAI struct {
	client *documentai.DocumentProcessorClient
	name   string
}

// NewDocumentAI creates a DocumentAI Recognizer
func NewDocumentAI(ctx context.Context, cfg DocumentAIConfig) (*DocumentAI, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("document ai project and processor are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating document ai client: %w", err)
	}

	return &DocumentAI{
		client: client,
		name:   fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID),
	}, nil
}

// Recognize sends the image to the processor and converts its tokens
func (d *DocumentAI) Recognize(ctx context.Context, png []byte) ([]ocr.WordBox, error) {
	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  png,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("processing document: %w", err)
	}
	return tokenWords(resp.GetDocument()), nil
}

// Close closes the Document AI client
func (d *DocumentAI) Close() error {
	return d.client.Close()
}

// tokenWords converts the first page's tokens to word boxes
func tokenWords(doc *documentaipb.Document) []ocr.WordBox {
	if doc == nil || len(doc.Pages) == 0 {
		return nil
	}
	page := doc.Pages[0]
	text := []rune(doc.Text)

	words := make([]ocr.WordBox, 0, len(page.Tokens))
	for _, token := range page.Tokens {
		t := strings.TrimSpace(layoutText(token.Layout, text))
		poly := layoutPoly(token.Layout, page.Dimension)
		if t == "" || len(poly) == 0 {
			continue
		}
		words = append(words, ocr.NewWordBox(poly, t))
	}
	return words
}

// layoutText joins the text segments a layout points at
func layoutText(layout *documentaipb.Document_Page_Layout, text []rune) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range layout.TextAnchor.TextSegments {
		start := min(max(int(seg.StartIndex), 0), len(text))
		end := min(max(int(seg.EndIndex), start), len(text))
		b.WriteString(string(text[start:end]))
	}
	return b.String()
}

// layoutPoly returns a layout's bounding polygon in pixels, preferring
// absolute vertices over normalized ones
func layoutPoly(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) []geom.Vec2 {
	if layout == nil || layout.BoundingPoly == nil {
		return nil
	}
	bp := layout.BoundingPoly
	if len(bp.Vertices) > 0 {
		poly := make([]geom.Vec2, len(bp.Vertices))
		for i, v := range bp.Vertices {
			poly[i] = geom.Vec2{X: float64(v.X), Y: float64(v.Y)}
		}
		return poly
	}
	if dim == nil || len(bp.NormalizedVertices) == 0 {
		return nil
	}
	poly := make([]geom.Vec2, len(bp.NormalizedVertices))
	for i, v := range bp.NormalizedVertices {
		poly[i] = geom.Vec2{X: float64(v.X * dim.Width), Y: float64(v.Y * dim.Height)}
	}
	return poly
}
