package database

import (
	"errors"
	"time"
)

var (
	// ErrStudentExists is returned when enrolling an id that is already taken.
	ErrStudentExists = errors.New("student already exists")
	// ErrStudentNotFound is returned when a student id is not enrolled.
	ErrStudentNotFound = errors.New("student not found")
)

// Student is an enrolled identity.
type Student struct {
	StudentID string
	Name      string
	CreatedAt time.Time
}

// StoredEmbedding represents one face embedding of a student
type StoredEmbedding struct {
	ID        int64
	StudentID string
	Pose      string // front, left, right, pose_{i} or unknown
	Embedding []float32
	Dim       int
	CreatedAt time.Time
}

// EnrolledStudent is a student together with all of its embeddings.
// This is the projection the recognition index is built from.
type EnrolledStudent struct {
	Student
	Embeddings []StoredEmbedding
}

// AttendanceRecord is an append-only attendance log entry
type AttendanceRecord struct {
	ID         string
	StudentID  string
	Name       string // joined from students, empty once the student is deleted
	Date       string // 2006-01-02
	Time       string // 15:04:05
	Confidence float64
	MarkedBy   string
	Status     string
	CreatedAt  time.Time
}
