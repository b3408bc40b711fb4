package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/ocr"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRegionIndex), errors.Is(err, ErrWordIndex),
		errors.Is(err, ErrEditTarget), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ocr.ErrMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// serviceError logs err and writes it with its mapped status
func serviceError(w http.ResponseWriter, action string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Error "+action, "error", err)
	} else {
		slog.Debug("Rejected request", "action", action, "error", err)
	}
	corsError(w, err.Error(), code)
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// pathInt reads an integer path parameter
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidInput, name, r.PathValue(name))
	}
	return v, nil
}

// regionPath reads the session id and receipt index
func regionPath(r *http.Request) (string, int, error) {
	index, err := pathInt(r, "index")
	if err != nil {
		return "", 0, err
	}
	return r.PathValue("id"), index, nil
}

// contentTypeFor guesses a MIME type from a file name
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleUploadPhoto reads an uploaded photo and opens a review session
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	// 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		corsError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		corsError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		corsError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		corsError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	session, err := s.service.ProcessPhoto(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing photo", "filename", header.Filename, "error", err)
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadRequest
		}
		corsError(w, err.Error(), code)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// handleGetSession returns a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.Session(r.PathValue("id"))
	if err != nil {
		serviceError(w, "getting session", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleDeleteSession drops a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(r.PathValue("id")); err != nil {
		serviceError(w, "deleting session", err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handlePhoto returns a session's uploaded photo
func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.service.Photo(r.PathValue("id"))
	if err != nil {
		serviceError(w, "getting photo", err)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Write(data)
}

// handleMoveFocus focuses the next or previous receipt
func (s *Server) handleMoveFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Move string `json:"move"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var step int
	switch req.Move {
	case "next":
		step = 1
	case "prev":
		step = -1
	default:
		corsError(w, "move must be next or prev", http.StatusBadRequest)
		return
	}

	session, err := s.service.MoveFocus(r.PathValue("id"), step)
	if err != nil {
		serviceError(w, "moving focus", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleBeginEdit starts editing a value of the focused receipt
func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Index int    `json:"index"`
		Sub   int    `json:"sub"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	field, err := ParseField(req.Field)
	if err != nil {
		serviceError(w, "starting edit", err)
		return
	}

	session, err := s.service.BeginEdit(r.PathValue("id"), Editing{Field: field, Index: req.Index, Sub: req.Sub})
	if err != nil {
		serviceError(w, "starting edit", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleConfirmEdit applies text to the value being edited
func (s *Server) handleConfirmEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.service.ConfirmEdit(r.PathValue("id"), req.Text)
	if err != nil {
		serviceError(w, "confirming edit", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleCancelEdit drops the value being edited
func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.CancelEdit(r.PathValue("id"))
	if err != nil {
		serviceError(w, "cancelling edit", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleRegionImage returns a receipt's crop
func (s *Server) handleRegionImage(w http.ResponseWriter, r *http.Request) {
	id, index, err := regionPath(r)
	if err != nil {
		serviceError(w, "getting image", err)
		return
	}
	data, err := s.service.RegionImage(id, index)
	if err != nil {
		serviceError(w, "getting image", err)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// handleSetLabel relabels one word
func (s *Server) handleSetLabel(w http.ResponseWriter, r *http.Request) {
	id, index, err := regionPath(r)
	if err != nil {
		serviceError(w, "setting label", err)
		return
	}

	var req struct {
		Line  int            `json:"line"`
		Word  int            `json:"word"`
		Label classify.Label `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	region, err := s.service.SetLabel(id, index, req.Line, req.Word, req.Label)
	if err != nil {
		serviceError(w, "setting label", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// handleSetItemHidden hides or restores an item
func (s *Server) handleSetItemHidden(w http.ResponseWriter, r *http.Request) {
	id, index, err := regionPath(r)
	if err != nil {
		serviceError(w, "updating item", err)
		return
	}
	item, err := pathInt(r, "item")
	if err != nil {
		serviceError(w, "updating item", err)
		return
	}

	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	region, err := s.service.SetItemHidden(id, index, item, req.Hidden)
	if err != nil {
		serviceError(w, "updating item", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// handleEdit replaces one value of a receipt's record
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, index, err := regionPath(r)
	if err != nil {
		serviceError(w, "editing record", err)
		return
	}

	var req struct {
		Field string `json:"field"`
		Index int    `json:"index"`
		Sub   int    `json:"sub"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	field, err := ParseField(req.Field)
	if err != nil {
		serviceError(w, "editing record", err)
		return
	}

	region, err := s.service.Edit(id, index, Editing{Field: field, Index: req.Index, Sub: req.Sub}, req.Text)
	if err != nil {
		serviceError(w, "editing record", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// handleRetry re-reads a receipt from its deskewed crop
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, index, err := regionPath(r)
	if err != nil {
		serviceError(w, "retrying receipt", err)
		return
	}
	region, err := s.service.Retry(r.Context(), id, index)
	if err != nil {
		serviceError(w, "retrying receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// handleCommit stores a receipt's items
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, index, err := regionPath(r)
	if err != nil {
		serviceError(w, "committing receipt", err)
		return
	}
	rows, err := s.service.Commit(id, index)
	if err != nil {
		serviceError(w, "committing receipt", err)
		return
	}
	writeJSON(w, http.StatusCreated, rows)
}

// handleListRegistrations lists the commits for a purchase date
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.service.Registrations(r.URL.Query().Get("date"))
	if err != nil {
		serviceError(w, "listing purchases", err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

// handleDeleteRegistration undoes one commit
func (s *Server) handleDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("registered") == "" {
		corsError(w, "registered is required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteRegistration(q.Get("date"), q.Get("registered")); err != nil {
		serviceError(w, "deleting purchases", err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleExport downloads a month's ledger as CSV
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	var buf strings.Builder
	if err := s.service.ExportMonth(&buf, month); err != nil {
		serviceError(w, "exporting purchases", err)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "purchases-"+month+".csv"))
	io.WriteString(w, buf.String())
}
