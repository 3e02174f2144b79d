// Package attendance turns recognition decisions into attendance records.
// At most one Present record exists per student per calendar day.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/recognition"
	"github.com/google/uuid"
)

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

var (
	// ErrMissingStudentID is returned when a manual confirmation names no student.
	ErrMissingStudentID = errors.New("student_id is required")
	// ErrInvalidConfidence is returned when a manual confirmation carries a score outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// Result messages
const (
	MessageNoFace        = "No face detected"
	MessageAlreadyMarked = "Attendance already marked today"
	MessageLowConfidence = "Low confidence - verification required"
	MessageNotRecognized = "Person not recognized"
)

// MarkResult is the outcome of a mark attempt. Only a newly created record
// sets Success; MAYBE, UNKNOWN, NO_FACE and repeat marks are not errors.
type MarkResult struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	StudentID     string  `json:"student_id,omitempty"`
	Name          string  `json:"name,omitempty"`
	Status        string  `json:"status"`
	Confidence    float64 `json:"confidence"`
	Time          string  `json:"time,omitempty"`
	Date          string  `json:"date,omitempty"`
	AlreadyMarked bool    `json:"already_marked"`
}

// Notifier receives every newly created attendance record.
type Notifier interface {
	Publish(record database.AttendanceRecord)
}

// Repository is the persistence the ledger needs.
type Repository interface {
	database.AttendanceWriter
	GetStudent(ctx context.Context, studentID string) (*database.Student, error)
}

// Service is the attendance ledger.
type Service struct {
	store      Repository
	recognizer *recognition.Recognizer
	cfg        *config.AttendanceConfig
	loc        *time.Location
	now        func() time.Time
	locks      *keyedMutex
	notifier   Notifier
}

// NewService creates the ledger. Dates are computed in cfg's timezone.
func NewService(store Repository, recognizer *recognition.Recognizer, cfg *config.AttendanceConfig) *Service {
	return &Service{
		store:      store,
		recognizer: recognizer,
		cfg:        cfg,
		loc:        cfg.Location(),
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier registers the receiver of new records.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Today returns the current calendar date in the ledger timezone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(constants.DateLayout)
}

// MarkAttendance recognizes the largest face in image and records the
// student present if the match is RECOGNIZED.
func (s *Service) MarkAttendance(ctx context.Context, image []byte) (*MarkResult, error) {
	decision, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, decision)
}

// MarkVector is MarkAttendance for an already computed query embedding.
func (s *Service) MarkVector(ctx context.Context, query []float32) (*MarkResult, error) {
	decision, err := s.recognizer.RecognizeVector(query)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, decision)
}

func (s *Service) apply(ctx context.Context, d recognition.Decision) (*MarkResult, error) {
	switch d.Tier {
	case recognition.TierNoFace:
		return &MarkResult{Message: MessageNoFace, Status: string(recognition.TierNoFace)}, nil
	case recognition.TierRecognized:
		return s.mark(ctx, d.Candidate.StudentID, d.Candidate.Name, d.Confidence, string(d.Tier), s.cfg.MarkedBy)
	case recognition.TierMaybe:
		return &MarkResult{
			Message:    MessageLowConfidence,
			StudentID:  d.Candidate.StudentID,
			Name:       d.Candidate.Name,
			Status:     string(d.Tier),
			Confidence: d.Confidence,
		}, nil
	default:
		return &MarkResult{
			Message:    MessageNotRecognized,
			Status:     string(recognition.TierUnknown),
			Confidence: d.Confidence,
		}, nil
	}
}

// ConfirmAttendance records a student present after manual verification of a
// MAYBE candidate. The once-per-day rule still applies.
func (s *Service) ConfirmAttendance(ctx context.Context, studentID string, confidence float64) (*MarkResult, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrMissingStudentID
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrInvalidConfidence
	}
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.mark(ctx, st.StudentID, st.Name, confidence, string(recognition.TierRecognized), s.cfg.ConfirmedBy)
}

// mark appends a Present record unless one exists for the student today.
func (s *Service) mark(ctx context.Context, studentID, name string, confidence float64, status, markedBy string) (*MarkResult, error) {
	now := s.now().In(s.loc)
	date := now.Format(constants.DateLayout)

	unlock := s.locks.Lock(studentID + "|" + date)
	defer unlock()

	rec := database.AttendanceRecord{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		Name:       name,
		Date:       date,
		Time:       now.Format(constants.TimeLayout),
		Confidence: confidence,
		MarkedBy:   markedBy,
		Status:     constants.StatusPresent,
		CreatedAt:  now,
	}
	stored, created, err := s.store.MarkPresent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("mark present: %w", err)
	}
	if stored.Name == "" {
		stored.Name = name
	}

	result := &MarkResult{
		StudentID:  stored.StudentID,
		Name:       stored.Name,
		Status:     status,
		Confidence: confidence,
		Time:       stored.Time,
		Date:       stored.Date,
	}
	if !created {
		result.AlreadyMarked = true
		result.Message = MessageAlreadyMarked
		return result, nil
	}

	result.Success = true
	result.Message = fmt.Sprintf("Attendance marked for %s", displayName(stored.Name, stored.StudentID))
	log.Printf("Attendance: %s (%s) present on %s at %s, confidence %.3f, by %s",
		stored.StudentID, stored.Name, stored.Date, stored.Time, confidence, markedBy)
	if s.notifier != nil {
		s.notifier.Publish(*stored)
	}
	return result, nil
}

func displayName(name, studentID string) string {
	if name != "" {
		return name
	}
	return studentID
}

// History returns records for date, or every record when date is empty,
// ordered by date and time ascending.
func (s *Service) History(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := time.Parse(constants.DateLayout, date); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
	}
	records, err := s.store.History(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return records, nil
}

// TodayRecords returns today's date and its records.
func (s *Service) TodayRecords(ctx context.Context) (string, []database.AttendanceRecord, error) {
	date := s.Today()
	records, err := s.History(ctx, date)
	return date, records, err
}
