package receipt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/crop"
	"github.com/zombor/receipt-ocr/internal/scanning"
)

// IDGenerator generates unique IDs for sessions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs photos through the pipeline, keeps the review sessions and
// commits reviewed receipts to the store
type Service struct {
	store       Store
	recognizer  scanning.Recognizer
	storage     Storage
	analyzer    *Analyzer
	idGenerator IDGenerator
	timeSource  TimeSource

	mu       sync.Mutex
	sessions map[string]*Session
	busy     map[string]bool
}

// NewService creates a new Service with default ID generator and time source
func NewService(store Store, recognizer scanning.Recognizer, storage Storage, analyzer *Analyzer) *Service {
	return NewServiceWithDeps(store, recognizer, storage, analyzer, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, recognizer scanning.Recognizer, storage Storage, analyzer *Analyzer, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		recognizer:  recognizer,
		storage:     storage,
		analyzer:    analyzer,
		idGenerator: idGen,
		timeSource:  timeSrc,
		sessions:    make(map[string]*Session),
		busy:        make(map[string]bool),
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "photo"
	}

	return base + ext
}

// ProcessPhoto stores a photo, reads it and opens a review session with one
// region per receipt found
func (s *Service) ProcessPhoto(ctx context.Context, filename string, data []byte, contentType string) (*SessionView, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	pngData, photo, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	words, err := s.recognizer.Recognize(ctx, pngData)
	if err != nil {
		slog.Error("Failed to read photo",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("reading photo: %w", err)
	}

	session := NewSession(id, s.analyzer.Analyze(words, photo))
	session.PhotoPath = savedPath
	session.CreatedAt = now

	slog.Info("Processed photo", "session", id, "words", len(words), "receipts", len(session.Regions))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = session
	view := session.View()
	return &view, nil
}

// session looks up a session. The caller holds s.mu.
func (s *Service) session(id string) (*Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return session, nil
}

// withRegion runs fn on one region of a session under the lock and returns
// the region's view afterwards
func (s *Service) withRegion(id string, index int, fn func(*Session, *Region) error) (*RegionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	region, err := session.Region(index)
	if err != nil {
		return nil, err
	}
	if err := fn(session, region); err != nil {
		return nil, err
	}
	// fn may have replaced the region
	view := session.Regions[index].View(index)
	return &view, nil
}

// Session returns a session's current state
func (s *Service) Session(id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

// DeleteSession drops a session and its stored photo
func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	session, err := s.session(id)
	if err == nil {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.storage.Delete(session.PhotoPath); err != nil {
		slog.Warn("Failed to delete photo", "filename", session.PhotoPath, "error", err)
	}
	return nil
}

// Photo returns a session's uploaded photo and the name it is stored under
func (s *Service) Photo(id string) ([]byte, string, error) {
	s.mu.Lock()
	session, err := s.session(id)
	s.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(session.PhotoPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading photo: %w", err)
	}
	return data, session.PhotoPath, nil
}

// withSession runs fn on a session under the lock and returns the session's
// view afterwards
func (s *Service) withSession(id string, fn func(*Session) error) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

// MoveFocus focuses the next receipt when step is positive and the previous
// one otherwise, wrapping around
func (s *Service) MoveFocus(id string, step int) (*SessionView, error) {
	return s.withSession(id, func(session *Session) error {
		if step > 0 {
			session.Next()
		} else {
			session.Prev()
		}
		return nil
	})
}

// BeginEdit starts editing a value of the focused receipt
func (s *Service) BeginEdit(id string, target Editing) (*SessionView, error) {
	return s.withSession(id, func(session *Session) error {
		return session.Begin(target)
	})
}

// ConfirmEdit applies text to the value being edited
func (s *Service) ConfirmEdit(id, text string) (*SessionView, error) {
	return s.withSession(id, func(session *Session) error {
		return session.Confirm(text)
	})
}

// CancelEdit drops the value being edited
func (s *Service) CancelEdit(id string) (*SessionView, error) {
	return s.withSession(id, func(session *Session) error {
		session.Cancel()
		return nil
	})
}

// RegionImage returns a receipt's crop as PNG
func (s *Service) RegionImage(id string, index int) ([]byte, error) {
	s.mu.Lock()
	session, err := s.session(id)
	var region *Region
	if err == nil {
		region, err = session.Region(index)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if region.Image == nil {
		return nil, fmt.Errorf("%w: receipt %d has no image", ErrNotFound, index)
	}
	return crop.EncodePNG(region.Image)
}

// SetLabel overrides one word's label
func (s *Service) SetLabel(id string, index, line, word int, label classify.Label) (*RegionView, error) {
	return s.withRegion(id, index, func(_ *Session, r *Region) error {
		prev, err := r.Label(line, word)
		if err != nil {
			return err
		}
		slog.Debug("Relabeling word", "session", id, "index", index, "line", line, "word", word, "from", prev.String(), "to", label.String())
		return r.SetLabel(line, word, label)
	})
}

// Edit focuses a receipt and replaces one value of its record with text
func (s *Service) Edit(id string, index int, target Editing, text string) (*RegionView, error) {
	return s.withRegion(id, index, func(session *Session, _ *Region) error {
		if err := session.SetFocus(index); err != nil {
			return err
		}
		if err := session.Begin(target); err != nil {
			return err
		}
		return session.Confirm(text)
	})
}

// SetItemHidden hides or restores one item of a receipt
func (s *Service) SetItemHidden(id string, index, item int, hidden bool) (*RegionView, error) {
	return s.withRegion(id, index, func(_ *Session, r *Region) error {
		return r.SetItemHidden(item, hidden)
	})
}

// Retry deskews a receipt's crop, reads it again and replaces the receipt
// with the result. Only one OCR call per session may be outstanding.
func (s *Service) Retry(ctx context.Context, id string, index int) (*RegionView, error) {
	s.mu.Lock()
	session, err := s.session(id)
	var region *Region
	if err == nil {
		region, err = session.Region(index)
	}
	if err == nil && s.busy[id] {
		err = fmt.Errorf("%w: session %s", ErrBusy, id)
	}
	if err == nil {
		s.busy[id] = true
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer func() {
		s.mu.Lock()
		delete(s.busy, id)
		s.mu.Unlock()
	}()

	if region.Image == nil {
		return nil, fmt.Errorf("%w: receipt %d has no image", ErrNotFound, index)
	}

	straight := crop.Deskew(region.Image, region.Angle())
	pngData, err := crop.EncodePNG(straight)
	if err != nil {
		return nil, err
	}

	words, err := s.recognizer.Recognize(ctx, pngData)
	if err != nil {
		slog.Error("Failed to re-read receipt", "session", id, "index", index, "error", err)
		return nil, fmt.Errorf("reading receipt: %w", err)
	}
	replacement := s.analyzer.AnalyzeOne(words, straight)

	slog.Info("Re-read receipt", "session", id, "index", index, "angle", region.Angle(), "words", replacement.WordCount())

	return s.withRegion(id, index, func(session *Session, _ *Region) error {
		return session.ReplaceRegion(index, replacement)
	})
}

// Commit stores the visible items of a receipt in its month's ledger
func (s *Service) Commit(id string, index int) ([]Row, error) {
	var rec PurchaseRecord
	if _, err := s.withRegion(id, index, func(_ *Session, r *Region) error {
		rec = r.Record()
		return nil
	}); err != nil {
		return nil, err
	}

	if rec.Date.IsZero() {
		return nil, fmt.Errorf("%w: no purchase date", ErrIncomplete)
	}
	if !rec.Date.Valid() {
		return nil, fmt.Errorf("%w: purchase date %s", ErrIncomplete, rec.Date)
	}
	rows := rec.Rows(s.timeSource.Now())
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrIncomplete)
	}

	if err := s.store.AddRows(rec.Date.MonthKey(), rows); err != nil {
		return nil, fmt.Errorf("saving rows: %w", err)
	}

	slog.Info("Committed receipt", "session", id, "index", index, "receipt_id", rec.ID(), "rows", len(rows), "total", rec.Total())
	return rows, nil
}

// parseDay parses a YYYY-MM-DD query value
func parseDay(value string) (Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidInput, value)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// Registrations returns the commits of purchases made on date, newest first
func (s *Service) Registrations(date string) ([]Registration, error) {
	d, err := parseDay(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListRows(d.MonthKey())
	if err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	return GroupRegistrations(rows, d.Japanese()), nil
}

// DeleteRegistration removes every row committed at registeredAt from the
// ledger of date's month
func (s *Service) DeleteRegistration(date, registeredAt string) error {
	d, err := parseDay(date)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRegistration(d.MonthKey(), registeredAt); err != nil {
		return fmt.Errorf("deleting registration: %w", err)
	}
	return nil
}

// ExportMonth writes a month's ledger as CSV. month is YYYY-MM.
func (s *Service) ExportMonth(w io.Writer, month string) error {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return fmt.Errorf("%w: month %q", ErrInvalidInput, month)
	}
	rows, err := s.store.ListRows(MonthKey(t.Year(), int(t.Month())))
	if err != nil {
		return fmt.Errorf("listing rows: %w", err)
	}
	return WriteCSV(w, rows)
}
