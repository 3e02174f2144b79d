package database

import (
	"context"
)

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// GetStudent retrieves a student by id, returns ErrStudentNotFound if missing
	GetStudent(ctx context.Context, studentID string) (*Student, error)
	// ListStudents returns all students in enrollment order
	ListStudents(ctx context.Context) ([]Student, error)
	// CountEmbeddings returns the total number of stored embeddings
	CountEmbeddings(ctx context.Context) (int, error)
	// LoadEnrollment returns every student with its embeddings, ordered by
	// enrollment time then id. Used to build the recognition index.
	LoadEnrollment(ctx context.Context) ([]EnrolledStudent, error)
}

// StudentWriter provides write access to enrolled students
type StudentWriter interface {
	StudentReader

	// CreateStudent stores the student and all of its embeddings in one transaction.
	// Returns ErrStudentExists if the id is taken.
	CreateStudent(ctx context.Context, student Student, embeddings []StoredEmbedding) error

	// DeleteStudent removes the student and cascades to its embeddings.
	// Attendance records are kept. Returns ErrStudentNotFound if missing.
	DeleteStudent(ctx context.Context, studentID string) error
}

// AttendanceReader provides read-only access to the attendance log
type AttendanceReader interface {
	// History returns records for the date (YYYY-MM-DD), or all records when date is empty,
	// ordered by date and time ascending
	History(ctx context.Context, date string) ([]AttendanceRecord, error)
	// GetAttendance returns the Present record for a student on a date, nil if none
	GetAttendance(ctx context.Context, studentID, date string) (*AttendanceRecord, error)
}

// AttendanceWriter provides write access to the attendance log
type AttendanceWriter interface {
	AttendanceReader

	// MarkPresent appends the record unless one already exists for the same
	// (student, date, status). The check and the insert are a single atomic step.
	// Returns the stored record and whether it was created by this call.
	MarkPresent(ctx context.Context, record AttendanceRecord) (*AttendanceRecord, bool, error)
}

// Store is the complete persistence contract of the engine
type Store interface {
	StudentWriter
	AttendanceWriter

	// Close releases the underlying connections
	Close() error
}
