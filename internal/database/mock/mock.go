// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/KP-101219/Quickroll-V2/internal/database"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu         sync.RWMutex
	students   map[string]database.Student
	embeddings map[string][]database.StoredEmbedding
	attendance []database.AttendanceRecord
	nextID     int64

	// Error injection
	GetError     error
	ListError    error
	LoadError    error
	CreateError  error
	DeleteError  error
	MarkError    error
	HistoryError error

	// Call counters
	LoadCalls int
	MarkCalls int
}

var _ database.Store = (*MockStore)(nil)

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		students:   make(map[string]database.Student),
		embeddings: make(map[string][]database.StoredEmbedding),
	}
}

// AddStudent adds a student with raw vectors, bypassing validation
func (m *MockStore) AddStudent(st database.Student, vectors map[string][]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[st.StudentID] = st
	poses := make([]string, 0, len(vectors))
	for pose := range vectors {
		poses = append(poses, pose)
	}
	slices.Sort(poses)
	for _, pose := range poses {
		m.nextID++
		m.embeddings[st.StudentID] = append(m.embeddings[st.StudentID], database.StoredEmbedding{
			ID: m.nextID, StudentID: st.StudentID, Pose: pose,
			Embedding: vectors[pose], Dim: len(vectors[pose]), CreatedAt: st.CreatedAt,
		})
	}
}

// Records returns a copy of all stored attendance records
func (m *MockStore) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.attendance)
}

// GetStudent retrieves a student by id
func (m *MockStore) GetStudent(ctx context.Context, studentID string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[studentID]
	if !ok {
		return nil, database.ErrStudentNotFound
	}
	return &st, nil
}

func (m *MockStore) sortedStudents() []database.Student {
	students := make([]database.Student, 0, len(m.students))
	for _, st := range m.students {
		students = append(students, st)
	}
	slices.SortFunc(students, func(a, b database.Student) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.StudentID, b.StudentID)
	})
	return students
}

// ListStudents returns all students in enrollment order
func (m *MockStore) ListStudents(ctx context.Context) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedStudents(), nil
}

// CountEmbeddings returns the total number of embeddings
func (m *MockStore) CountEmbeddings(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, embs := range m.embeddings {
		n += len(embs)
	}
	return n, nil
}

// LoadEnrollment returns all students with embeddings
func (m *MockStore) LoadEnrollment(ctx context.Context) ([]database.EnrolledStudent, error) {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.EnrolledStudent
	for _, st := range m.sortedStudents() {
		if embs := m.embeddings[st.StudentID]; len(embs) > 0 {
			out = append(out, database.EnrolledStudent{Student: st, Embeddings: slices.Clone(embs)})
		}
	}
	return out, nil
}

// CreateStudent stores a student with its embeddings
func (m *MockStore) CreateStudent(ctx context.Context, student database.Student, embeddings []database.StoredEmbedding) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[student.StudentID]; ok {
		return database.ErrStudentExists
	}
	m.students[student.StudentID] = student
	for _, emb := range embeddings {
		m.nextID++
		emb.ID = m.nextID
		emb.StudentID = student.StudentID
		emb.Dim = len(emb.Embedding)
		emb.CreatedAt = student.CreatedAt
		m.embeddings[student.StudentID] = append(m.embeddings[student.StudentID], emb)
	}
	return nil
}

// DeleteStudent removes a student and its embeddings
func (m *MockStore) DeleteStudent(ctx context.Context, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return database.ErrStudentNotFound
	}
	delete(m.students, studentID)
	delete(m.embeddings, studentID)
	return nil
}

func (m *MockStore) withName(rec database.AttendanceRecord) database.AttendanceRecord {
	rec.Name = m.students[rec.StudentID].Name
	return rec
}

// MarkPresent appends the record unless the student already has one for the date
func (m *MockStore) MarkPresent(ctx context.Context, record database.AttendanceRecord) (*database.AttendanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkCalls++
	if m.MarkError != nil {
		return nil, false, m.MarkError
	}
	for _, rec := range m.attendance {
		if rec.StudentID == record.StudentID && rec.Date == record.Date && rec.Status == record.Status {
			existing := m.withName(rec)
			return &existing, false, nil
		}
	}
	m.attendance = append(m.attendance, record)
	stored := m.withName(record)
	return &stored, true, nil
}

// GetAttendance returns the Present record for a student on a date
func (m *MockStore) GetAttendance(ctx context.Context, studentID, date string) (*database.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.attendance {
		if rec.StudentID == studentID && rec.Date == date && rec.Status == "Present" {
			found := m.withName(rec)
			return &found, nil
		}
	}
	return nil, nil
}

// History returns records for a date ordered by time
func (m *MockStore) History(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []database.AttendanceRecord{}
	for _, rec := range m.attendance {
		if date == "" || rec.Date == date {
			out = append(out, m.withName(rec))
		}
	}
	slices.SortStableFunc(out, func(a, b database.AttendanceRecord) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Time, b.Time))
	})
	return out, nil
}

// Close is a no-op
func (m *MockStore) Close() error {
	return nil
}
