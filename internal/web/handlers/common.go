package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/KP-101219/Quickroll-V2/internal/attendance"
	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/embedder"
	"github.com/KP-101219/Quickroll-V2/internal/recognition"
	"github.com/KP-101219/Quickroll-V2/internal/roster"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Version is reported by the root endpoint. Set from cmd at startup.
var Version = "dev"

// Reloader rebuilds the recognition index from the store.
type Reloader interface {
	Reload(ctx context.Context) (recognition.ReloadStats, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, roster.ErrInvalidInput),
		errors.Is(err, roster.ErrNoValidFaces),
		errors.Is(err, attendance.ErrInvalidDate),
		errors.Is(err, attendance.ErrMissingStudentID),
		errors.Is(err, attendance.ErrInvalidConfidence),
		errors.Is(err, embedder.ErrInvalidImage),
		errors.Is(err, recognition.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrStudentExists):
		return http.StatusConflict
	case errors.Is(err, embedder.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with its mapped status. Internal failures are
// logged and reported with a generic message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	switch status {
	case http.StatusInternalServerError:
		log.Printf("%s %s: %v", r.Method, sanitizeForLog(r.URL.Path), err)
		respondError(w, status, "internal server error")
	case http.StatusNotFound:
		respondError(w, status, "Student not found")
	case http.StatusConflict:
		respondError(w, status, "Student already exists")
	default:
		respondError(w, status, err.Error())
	}
}

// readFile reads one uploaded file, bounded by the upload limit.
func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", sanitizeForLog(fh.Filename))
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, constants.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %s", sanitizeForLog(fh.Filename))
	}
	return data, nil
}

// readImage parses the multipart form and returns the single image in field.
// On failure it writes a 400 response and returns false.
func readImage(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, field+" is required")
		return nil, false
	}
	data, err := readFile(files[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "Invalid image")
		return nil, false
	}
	return data, true
}

// Root handles the service banner endpoint.
func Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Quickroll V2 Backend API",
		"version": Version,
		"status":  "online",
	})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
