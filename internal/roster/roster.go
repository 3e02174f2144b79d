// Package roster manages enrolled students: enrollment from face images,
// lookup, search and removal.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/embedder"
	"github.com/samber/lo"
)

var (
	// ErrInvalidInput is returned for a missing id or name or a bad image count.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoValidFaces is returned when none of the enrollment images yields a face.
	ErrNoValidFaces = errors.New("no valid faces detected in the provided images")
)

// Rejection reasons reported per image.
const (
	ReasonInvalidImage      = "invalid image"
	ReasonNoFace            = "no face detected"
	ReasonDimensionMismatch = "embedding dimension mismatch"
)

// RejectedImage describes an enrollment image that produced no embedding.
type RejectedImage struct {
	Index  int    `json:"index"`
	Pose   string `json:"pose"`
	Reason string `json:"reason"`
}

// EnrollResult is the outcome of a successful enrollment.
type EnrollResult struct {
	StudentID       string
	Name            string
	CreatedAt       time.Time
	EmbeddingsCount int
	Rejected        []RejectedImage
}

// Service enrolls and manages students. It never touches the recognition
// index; callers reload it after a successful write.
type Service struct {
	store    database.StudentWriter
	embedder embedder.FaceEmbedder
	cfg      *config.RecognitionConfig
	dim      int
	now      func() time.Time
}

// NewService creates a roster service. dim, when non-zero, is the required
// embedding dimension.
func NewService(store database.StudentWriter, e embedder.FaceEmbedder, cfg *config.RecognitionConfig, dim int) *Service {
	return &Service{store: store, embedder: e, cfg: cfg, dim: dim, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Enroll embeds each image and stores the student with every accepted
// embedding in one write. Images without a usable face are skipped and
// reported; an unreachable embedder aborts the whole enrollment.
func (s *Service) Enroll(ctx context.Context, studentID, name string, images [][]byte) (*EnrollResult, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if studentID == "" || name == "" {
		return nil, fmt.Errorf("%w: student_id and name are required", ErrInvalidInput)
	}
	if len(studentID) > constants.MaxStudentIDLength {
		return nil, fmt.Errorf("%w: student_id longer than %d characters", ErrInvalidInput, constants.MaxStudentIDLength)
	}
	if len(images) == 0 || len(images) > constants.MaxEnrollImages {
		return nil, fmt.Errorf("%w: provide between 1 and %d face images", ErrInvalidInput, constants.MaxEnrollImages)
	}

	if _, err := s.store.GetStudent(ctx, studentID); err == nil {
		return nil, database.ErrStudentExists
	} else if !errors.Is(err, database.ErrStudentNotFound) {
		return nil, fmt.Errorf("check student: %w", err)
	}

	poses := make([]string, len(images))
	for i := range images {
		poses[i] = s.cfg.PoseLabel(i)
	}
	embeddings, rejected, err := s.embedAll(ctx, images, poses)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return &EnrollResult{StudentID: studentID, Name: name, Rejected: rejected}, ErrNoValidFaces
	}

	student := database.Student{StudentID: studentID, Name: name, CreatedAt: s.now()}
	if err := s.store.CreateStudent(ctx, student, embeddings); err != nil {
		if errors.Is(err, database.ErrStudentExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create student: %w", err)
	}

	return &EnrollResult{
		StudentID:       studentID,
		Name:            name,
		CreatedAt:       student.CreatedAt,
		EmbeddingsCount: len(embeddings),
		Rejected:        rejected,
	}, nil
}

// embedAll returns one embedding per image that contains a face, using the
// largest face when several are found. All embeddings share one dimension.
func (s *Service) embedAll(ctx context.Context, images [][]byte, poses []string) ([]database.StoredEmbedding, []RejectedImage, error) {
	var (
		embeddings []database.StoredEmbedding
		rejected   []RejectedImage
	)
	dim := s.dim

	for i, img := range images {
		faces, err := s.embedder.EmbedFaces(ctx, img)
		if errors.Is(err, embedder.ErrInvalidImage) {
			rejected = append(rejected, RejectedImage{Index: i, Pose: poses[i], Reason: ReasonInvalidImage})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("embed image %d: %w", i, err)
		}

		face, ok := embedder.Largest(faces)
		if !ok {
			rejected = append(rejected, RejectedImage{Index: i, Pose: poses[i], Reason: ReasonNoFace})
			continue
		}
		if dim == 0 {
			dim = len(face.Embedding)
		}
		if len(face.Embedding) != dim {
			rejected = append(rejected, RejectedImage{Index: i, Pose: poses[i], Reason: ReasonDimensionMismatch})
			continue
		}

		embeddings = append(embeddings, database.StoredEmbedding{
			Pose:      poses[i],
			Embedding: face.Embedding,
			Dim:       len(face.Embedding),
		})
	}
	return embeddings, rejected, nil
}

// Get returns an enrolled student.
func (s *Service) Get(ctx context.Context, studentID string) (*database.Student, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, fmt.Errorf("%w: student_id is required", ErrInvalidInput)
	}
	return s.store.GetStudent(ctx, studentID)
}

// List returns students in enrollment order. A non-empty query keeps only
// students whose name or id contains every query word, ignoring case and diacritics.
func (s *Service) List(ctx context.Context, query string) ([]database.Student, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return lo.Filter(students, func(st database.Student, _ int) bool {
		return matchesQuery(st.StudentID, st.Name, query)
	}), nil
}

// Delete removes the student and its embeddings. Attendance history is kept.
func (s *Service) Delete(ctx context.Context, studentID string) error {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return fmt.Errorf("%w: student_id is required", ErrInvalidInput)
	}
	return s.store.DeleteStudent(ctx, studentID)
}
