package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/roster"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// StudentsHandler handles enrollment and roster endpoints.
type StudentsHandler struct {
	config   *config.Config
	roster   *roster.Service
	reloader Reloader
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(cfg *config.Config, svc *roster.Service, reloader Reloader) *StudentsHandler {
	return &StudentsHandler{
		config:   cfg,
		roster:   svc,
		reloader: reloader,
	}
}

// StudentResponse represents a student in API responses
type StudentResponse struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func studentToResponse(st database.Student) StudentResponse {
	return StudentResponse{
		StudentID: st.StudentID,
		Name:      st.Name,
		CreatedAt: st.CreatedAt.Format(time.RFC3339),
	}
}

// RegisterResponse is returned after a successful enrollment
type RegisterResponse struct {
	Message         string                 `json:"message"`
	StudentID       string                 `json:"student_id"`
	Name            string                 `json:"name"`
	EmbeddingsCount int                    `json:"embeddings_count"`
	Rejected        []roster.RejectedImage `json:"rejected"`
}

// reload refreshes the index after a write. The write already succeeded, so
// a failure is logged and left to the next reload.
func (h *StudentsHandler) reload(r *http.Request) {
	if h.reloader == nil {
		return
	}
	if _, err := h.reloader.Reload(r.Context()); err != nil {
		log.Printf("Index reload after %s %s failed: %v", r.Method, sanitizeForLog(r.URL.Path), err)
	}
}

// Register enrolls a student from 1-3 face images.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["face_images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "face_images is required")
		return
	}
	if len(files) > constants.MaxEnrollImages {
		respondError(w, http.StatusBadRequest, "at most 3 face images are accepted")
		return
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, data)
	}

	res, err := h.roster.Enroll(r.Context(), r.FormValue("student_id"), r.FormValue("name"), images)
	if err != nil {
		if errors.Is(err, roster.ErrNoValidFaces) {
			respondError(w, http.StatusBadRequest, "No valid faces detected in the provided images")
			return
		}
		respondDomainError(w, r, err)
		return
	}

	h.reload(r)

	respondJSON(w, http.StatusOK, RegisterResponse{
		Message:         "Student registered successfully",
		StudentID:       res.StudentID,
		Name:            res.Name,
		EmbeddingsCount: res.EmbeddingsCount,
		Rejected:        lo.Ternary(res.Rejected == nil, []roster.RejectedImage{}, res.Rejected),
	})
}

// List returns enrolled students, optionally filtered by ?q=.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.roster.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": lo.Map(students, func(st database.Student, _ int) StudentResponse { return studentToResponse(st) }),
		"count":    len(students),
	})
}

// Get returns a single student.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.roster.Get(r.Context(), chi.URLParam(r, "student_id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, studentToResponse(*st))
}

// Delete removes a student and its embeddings, then reloads the index.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "student_id")
	if err := h.roster.Delete(r.Context(), studentID); err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.reload(r)

	respondJSON(w, http.StatusOK, map[string]string{
		"message":    "Student deleted successfully",
		"student_id": studentID,
	})
}
