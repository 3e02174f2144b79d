package gormstore

import (
	"fmt"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/vmihailenco/msgpack/v5"
)

type studentModel struct {
	StudentID  string           `gorm:"primaryKey;size:64"`
	Name       string           `gorm:"not null"`
	CreatedAt  time.Time        `gorm:"index"`
	Embeddings []embeddingModel `gorm:"foreignKey:StudentID;references:StudentID;constraint:OnDelete:CASCADE"`
}

func (studentModel) TableName() string { return "students" }

type embeddingModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	StudentID string `gorm:"size:64;not null;index"`
	Pose      string `gorm:"size:32;not null"`
	Vector    []byte `gorm:"not null"`
	Dim       int    `gorm:"not null"`
	CreatedAt time.Time
}

func (embeddingModel) TableName() string { return "embeddings" }

// attendanceModel has no foreign key to students: history outlives the student.
type attendanceModel struct {
	ID             string  `gorm:"primaryKey;size:36"`
	StudentID      string  `gorm:"size:64;not null;uniqueIndex:uq_attendance_day,priority:1"`
	AttendanceDate string  `gorm:"size:10;not null;uniqueIndex:uq_attendance_day,priority:2;index:idx_attendance_date"`
	AttendanceTime string  `gorm:"size:8;not null"`
	Confidence     float64 `gorm:"not null"`
	MarkedBy       string  `gorm:"size:64;not null"`
	Status         string  `gorm:"size:16;not null;default:Present;uniqueIndex:uq_attendance_day,priority:3"`
	CreatedAt      time.Time
}

func (attendanceModel) TableName() string { return "attendance_logs" }

// attendanceRow is attendanceModel joined with the student name.
type attendanceRow struct {
	attendanceModel
	Name string
}

// encodeVector serialises an embedding as a msgpack float32 array.
func encodeVector(v []float32) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return data, nil
}

func decodeVector(data []byte) ([]float32, error) {
	var v []float32
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return v, nil
}

func (m studentModel) toStudent() database.Student {
	return database.Student{StudentID: m.StudentID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func (m embeddingModel) toEmbedding() (database.StoredEmbedding, error) {
	v, err := decodeVector(m.Vector)
	if err != nil {
		return database.StoredEmbedding{}, fmt.Errorf("embedding %d: %w", m.ID, err)
	}
	return database.StoredEmbedding{
		ID:        m.ID,
		StudentID: m.StudentID,
		Pose:      m.Pose,
		Embedding: v,
		Dim:       m.Dim,
		CreatedAt: m.CreatedAt,
	}, nil
}

func fromRecord(r database.AttendanceRecord) attendanceModel {
	return attendanceModel{
		ID:             r.ID,
		StudentID:      r.StudentID,
		AttendanceDate: r.Date,
		AttendanceTime: r.Time,
		Confidence:     r.Confidence,
		MarkedBy:       r.MarkedBy,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
	}
}

func (r attendanceRow) toRecord() database.AttendanceRecord {
	return database.AttendanceRecord{
		ID:         r.ID,
		StudentID:  r.StudentID,
		Name:       r.Name,
		Date:       r.AttendanceDate,
		Time:       r.AttendanceTime,
		Confidence: r.Confidence,
		MarkedBy:   r.MarkedBy,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
}
