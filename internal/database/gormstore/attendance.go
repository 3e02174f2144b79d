package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withNames selects attendance rows joined with the current student name.
func withNames(db *gorm.DB) *gorm.DB {
	return db.Table("attendance_logs").
		Select("attendance_logs.*, COALESCE(students.name, '') AS name").
		Joins("LEFT JOIN students ON students.student_id = attendance_logs.student_id")
}

// MarkPresent inserts the record unless the (student, date, status) slot is taken.
// The unique index makes the insert itself the check.
func (s *Store) MarkPresent(ctx context.Context, record database.AttendanceRecord) (*database.AttendanceRecord, bool, error) {
	var (
		stored  *database.AttendanceRecord
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := fromRecord(record)
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
		if result.Error != nil {
			return fmt.Errorf("insert attendance: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			created = true
			stored = &record
			return nil
		}

		var row attendanceRow
		err := withNames(tx).
			Where("attendance_logs.student_id = ? AND attendance_logs.attendance_date = ? AND attendance_logs.status = ?",
				record.StudentID, record.Date, record.Status).
			Take(&row).Error
		if err != nil {
			return fmt.Errorf("load existing attendance: %w", err)
		}
		rec := row.toRecord()
		stored = &rec
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetAttendance returns the Present record for a student on a date, nil if none.
func (s *Store) GetAttendance(ctx context.Context, studentID, date string) (*database.AttendanceRecord, error) {
	var row attendanceRow
	err := withNames(s.db.WithContext(ctx)).
		Where("attendance_logs.student_id = ? AND attendance_logs.attendance_date = ? AND attendance_logs.status = ?",
			studentID, date, constants.StatusPresent).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	rec := row.toRecord()
	return &rec, nil
}

// History returns records for a date, or every record when date is empty.
func (s *Store) History(ctx context.Context, date string) ([]database.AttendanceRecord, error) {
	q := withNames(s.db.WithContext(ctx))
	if date != "" {
		q = q.Where("attendance_logs.attendance_date = ?", date)
	}

	var rows []attendanceRow
	err := q.Order("attendance_logs.attendance_date, attendance_logs.attendance_time, attendance_logs.created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query attendance history: %w", err)
	}
	return lo.Map(rows, func(r attendanceRow, _ int) database.AttendanceRecord { return r.toRecord() }), nil
}
