// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum multipart request size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// MaxEnrollImages is the maximum number of face images accepted per enrollment
	MaxEnrollImages = 3

	// MaxStudentIDLength matches the student_id column width
	MaxStudentIDLength = 64

	// MaxImageSize is the maximum dimension (width or height) sent to the embedder
	MaxImageSize = 1920
)

// Recognition constants
const (
	// DefaultTopN is the default number of candidates returned by top-matches
	DefaultTopN = 3

	// MaxTopN caps the top_n query parameter
	MaxTopN = 50
)

// Attendance constants
const (
	// DateLayout is the calendar-date format used for attendance records
	DateLayout = "2006-01-02"

	// TimeLayout is the time-of-day format used for attendance records
	TimeLayout = "15:04:05"

	// StatusPresent is the only status the engine writes
	StatusPresent = "Present"
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for live feed subscriber channels
	EventChannelBuffer = 32
)
