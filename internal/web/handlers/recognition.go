package handlers

import (
	"net/http"
	"strconv"

	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/recognition"
	"github.com/samber/lo"
)

// RecognitionHandler handles face recognition endpoints.
type RecognitionHandler struct {
	config     *config.Config
	recognizer *recognition.Recognizer
	reloader   Reloader
}

// NewRecognitionHandler creates a new recognition handler.
func NewRecognitionHandler(cfg *config.Config, recognizer *recognition.Recognizer, reloader Reloader) *RecognitionHandler {
	return &RecognitionHandler{
		config:     cfg,
		recognizer: recognizer,
		reloader:   reloader,
	}
}

// RecognizeResponse is the classification of the largest face.
// StudentID and Name are null unless the tier is RECOGNIZED or MAYBE.
type RecognizeResponse struct {
	StudentID  *string `json:"student_id"`
	Name       *string `json:"name"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
}

// MatchResponse is one ranked candidate.
type MatchResponse struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Pose       string  `json:"pose"`
}

func decisionToResponse(d recognition.Decision) RecognizeResponse {
	resp := RecognizeResponse{Status: string(d.Tier), Confidence: d.Confidence}
	if d.Candidate != nil {
		resp.StudentID = lo.ToPtr(d.Candidate.StudentID)
		resp.Name = lo.ToPtr(d.Candidate.Name)
	}
	return resp
}

// Recognize classifies the largest face in the uploaded image.
func (h *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	img, ok := readImage(w, r, "image")
	if !ok {
		return
	}

	decision, err := h.recognizer.Recognize(r.Context(), img)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, decisionToResponse(decision))
}

// parseTopN reads ?top_n=, defaulting to DefaultTopN and capped at MaxTopN.
func parseTopN(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("top_n")
	if s == "" {
		return constants.DefaultTopN, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, constants.MaxTopN), true
}

// parseMinScore reads ?min_score=, defaulting to the configured floor.
func (h *RecognitionHandler) parseMinScore(r *http.Request) (float64, bool) {
	s := r.URL.Query().Get("min_score")
	if s == "" {
		return h.config.Recognition.TopMatchMinScore, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// TopMatches returns the best n candidates for the largest face.
func (h *RecognitionHandler) TopMatches(w http.ResponseWriter, r *http.Request) {
	topN, ok := parseTopN(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "top_n must be a positive integer")
		return
	}
	minScore, ok := h.parseMinScore(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "min_score must be between 0 and 1")
		return
	}

	img, ok := readImage(w, r, "image")
	if !ok {
		return
	}

	matches, _, err := h.recognizer.TopMatches(r.Context(), img, topN, minScore)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"matches": lo.Map(matches, func(c recognition.Candidate, _ int) MatchResponse {
			return MatchResponse{StudentID: c.StudentID, Name: c.Name, Confidence: c.Score, Pose: c.Pose}
		}),
	})
}

// ReloadDatabase rebuilds the recognition index from the store.
func (h *RecognitionHandler) ReloadDatabase(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reloader.Reload(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Database reloaded successfully",
		"students":   stats.Students,
		"embeddings": stats.Embeddings,
		"generation": stats.Generation,
	})
}
