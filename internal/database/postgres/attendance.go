package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KP-101219/Quickroll-V2/internal/database"
)

const attendanceColumns = `
	a.id, a.student_id, COALESCE(s.name, ''),
	to_char(a.attendance_date, 'YYYY-MM-DD'), to_char(a.attendance_time, 'HH24:MI:SS'),
	a.confidence, a.marked_by, a.status, a.created_at
`

func scanAttendance(row interface{ Scan(...any) error }) (database.AttendanceRecord, error) {
	var r database.AttendanceRecord
	err := row.Scan(&r.ID, &r.StudentID, &r.Name, &r.Date, &r.Time,
		&r.Confidence, &r.MarkedBy, &r.Status, &r.CreatedAt)
	return r, err
}

// MarkPresent inserts the record unless the (student, date, status) slot is taken.
// ON CONFLICT DO NOTHING makes the check and the append one statement.
func (s *Store) MarkPresent(ctx context.Context, record database.AttendanceRecord) (*database.AttendanceRecord, bool, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO attendance_logs (id, student_id, attendance_date, attendance_time, confidence, marked_by, status, created_at)
		VALUES ($1, $2, $3::date, $4::time, $5, $6, $7, $8)
		ON CONFLICT (student_id, attendance_date, status) DO NOTHING
		RETURNING created_at
	`,
		record.ID, record.StudentID, record.Date, record.Time,
		record.Confidence, record.MarkedBy, record.Status, record.CreatedAt,
	).Scan(&record.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.GetAttendance(ctx, record.StudentID, record.Date)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("attendance for %s on %s conflicted but was not found", record.StudentID, record.Date)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}
	return &record, true, nil
}

// GetAttendance returns the Present record for a student on a date, nil if none.
func (s *Store) GetAttendance(ctx context.Context, studentID, date string) (*database.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
		FROM attendance_logs a
		LEFT JOIN students s ON s.student_id = a.student_id
		WHERE a.student_id = $1 AND a.attendance_date = $2::date AND a.status = 'Present'
	`
	rec, err := scanAttendance(s.pool.QueryRow(ctx, query, studentID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return &rec, nil
}

// History returns records for a date, or every record when date is empty.
func (s *Store) History(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
		FROM attendance_logs a
		LEFT JOIN students s ON s.student_id = a.student_id`
	var args []any
	if date != "" {
		query += ` WHERE a.attendance_date = $1::date`
		args = append(args, date)
	}
	query += ` ORDER BY a.attendance_date, a.attendance_time, a.created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance history: %w", err)
	}
	defer rows.Close()

	records := []database.AttendanceRecord{}
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
