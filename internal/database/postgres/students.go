package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// GetStudent retrieves a student by id.
func (s *Store) GetStudent(ctx context.Context, studentID string) (*database.Student, error) {
	var st database.Student
	err := s.pool.QueryRow(ctx,
		"SELECT student_id, name, created_at FROM students WHERE student_id = $1", studentID,
	).Scan(&st.StudentID, &st.Name, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

// ListStudents returns all students in enrollment order.
func (s *Store) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := s.pool.Query(ctx, "SELECT student_id, name, created_at FROM students ORDER BY created_at, student_id")
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		var st database.Student
		if err := rows.Scan(&st.StudentID, &st.Name, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// CountEmbeddings returns the total number of stored embeddings.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// LoadEnrollment reads every student with its embeddings in a single query.
func (s *Store) LoadEnrollment(ctx context.Context) ([]database.EnrolledStudent, error) {
	query := `
		SELECT s.student_id, s.name, s.created_at, e.id, e.pose, e.embedding, e.dim, e.created_at
		FROM students s
		JOIN embeddings e ON e.student_id = s.student_id
		ORDER BY s.created_at, s.student_id, e.id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query enrollment: %w", err)
	}
	defer rows.Close()

	var enrolled []database.EnrolledStudent
	for rows.Next() {
		var (
			st  database.Student
			emb database.StoredEmbedding
			vec pgvector.Vector
		)
		if err := rows.Scan(&st.StudentID, &st.Name, &st.CreatedAt,
			&emb.ID, &emb.Pose, &vec, &emb.Dim, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment row: %w", err)
		}
		emb.StudentID = st.StudentID
		emb.Embedding = vec.Slice()

		// Rows arrive grouped by student.
		if n := len(enrolled); n == 0 || enrolled[n-1].StudentID != st.StudentID {
			enrolled = append(enrolled, database.EnrolledStudent{Student: st})
		}
		last := &enrolled[len(enrolled)-1]
		last.Embeddings = append(last.Embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment: %w", err)
	}
	return enrolled, nil
}

// CreateStudent stores the student and its embeddings in one transaction.
func (s *Store) CreateStudent(ctx context.Context, student database.Student, embeddings []database.StoredEmbedding) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO students (student_id, name, created_at) VALUES ($1, $2, $3)",
		student.StudentID, student.Name, student.CreatedAt,
	)
	if isUniqueViolation(err) {
		return database.ErrStudentExists
	}
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (student_id, pose, embedding, dim, created_at)
		VALUES ($1, $2, $3::vector, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range embeddings {
		emb := &embeddings[i]
		if _, err := stmt.ExecContext(ctx,
			student.StudentID,
			emb.Pose,
			pgvector.NewVector(emb.Embedding),
			len(emb.Embedding),
			student.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert embedding %s/%s: %w", student.StudentID, emb.Pose, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteStudent removes the student; embeddings go with it via ON DELETE CASCADE.
func (s *Store) DeleteStudent(ctx context.Context, studentID string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM students WHERE student_id = $1", studentID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if count == 0 {
		return database.ErrStudentNotFound
	}
	return nil
}
