package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/KP-101219/Quickroll-V2/internal/attendance"
	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/samber/lo"
)

// AttendanceHandler handles attendance endpoints.
type AttendanceHandler struct {
	config *config.Config
	ledger *attendance.Service
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(cfg *config.Config, ledger *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{
		config: cfg,
		ledger: ledger,
	}
}

// RecordResponse represents an attendance record in API responses
type RecordResponse struct {
	ID         string  `json:"id"`
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	MarkedBy   string  `json:"marked_by"`
}

func recordToResponse(rec database.AttendanceRecord) RecordResponse {
	return RecordResponse{
		ID:         rec.ID,
		StudentID:  rec.StudentID,
		Name:       rec.Name,
		Date:       rec.Date,
		Time:       rec.Time,
		Status:     rec.Status,
		Confidence: rec.Confidence,
		MarkedBy:   rec.MarkedBy,
	}
}

func recordsToResponse(records []database.AttendanceRecord) []RecordResponse {
	return lo.Map(records, func(rec database.AttendanceRecord, _ int) RecordResponse { return recordToResponse(rec) })
}

// ConfirmRequest is the body of a manual confirmation.
type ConfirmRequest struct {
	StudentID  string  `json:"student_id"`
	Confidence float64 `json:"confidence"`
}

// Mark recognizes the uploaded face and records attendance when RECOGNIZED.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	img, ok := readImage(w, r, "image")
	if !ok {
		return
	}

	res, err := h.ledger.MarkAttendance(r.Context(), img)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Confirm records attendance for a manually verified candidate.
func (h *AttendanceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	res, err := h.ledger.ConfirmAttendance(r.Context(), req.StudentID, req.Confidence)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// History returns records for ?date=YYYY-MM-DD, or all records.
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.History(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": recordsToResponse(records),
		"count":   len(records),
	})
}

// Today returns today's records.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	date, records, err := h.ledger.TodayRecords(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"records": recordsToResponse(records),
		"count":   len(records),
	})
}
