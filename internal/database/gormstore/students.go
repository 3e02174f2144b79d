package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GetStudent retrieves a student by id.
func (s *Store) GetStudent(ctx context.Context, studentID string) (*database.Student, error) {
	var m studentModel
	err := s.db.WithContext(ctx).Where("student_id = ?", studentID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	st := m.toStudent()
	return &st, nil
}

// ListStudents returns all students in enrollment order.
func (s *Store) ListStudents(ctx context.Context) ([]database.Student, error) {
	var models []studentModel
	if err := s.db.WithContext(ctx).Order("created_at, student_id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return lo.Map(models, func(m studentModel, _ int) database.Student { return m.toStudent() }), nil
}

// CountEmbeddings returns the total number of stored embeddings.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&embeddingModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return int(count), nil
}

// LoadEnrollment reads every student with its embeddings.
// Students without embeddings are omitted since they can never match.
func (s *Store) LoadEnrollment(ctx context.Context) ([]database.EnrolledStudent, error) {
	var models []studentModel
	err := s.db.WithContext(ctx).
		Preload("Embeddings", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at, student_id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}

	enrolled := make([]database.EnrolledStudent, 0, len(models))
	for _, m := range models {
		if len(m.Embeddings) == 0 {
			continue
		}
		es := database.EnrolledStudent{Student: m.toStudent()}
		for _, em := range m.Embeddings {
			emb, err := em.toEmbedding()
			if err != nil {
				return nil, fmt.Errorf("student %s: %w", m.StudentID, err)
			}
			es.Embeddings = append(es.Embeddings, emb)
		}
		enrolled = append(enrolled, es)
	}
	return enrolled, nil
}

// CreateStudent stores the student and its embeddings in one transaction.
func (s *Store) CreateStudent(ctx context.Context, student database.Student, embeddings []database.StoredEmbedding) error {
	rows := make([]embeddingModel, 0, len(embeddings))
	for _, emb := range embeddings {
		data, err := encodeVector(emb.Embedding)
		if err != nil {
			return err
		}
		rows = append(rows, embeddingModel{
			StudentID: student.StudentID,
			Pose:      emb.Pose,
			Vector:    data,
			Dim:       len(emb.Embedding),
			CreatedAt: student.CreatedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&studentModel{}).Where("student_id = ?", student.StudentID).Count(&existing).Error; err != nil {
			return fmt.Errorf("check student: %w", err)
		}
		if existing > 0 {
			return database.ErrStudentExists
		}

		err := tx.Omit("Embeddings").Create(&studentModel{
			StudentID: student.StudentID,
			Name:      student.Name,
			CreatedAt: student.CreatedAt,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.ErrStudentExists
		}
		if err != nil {
			return fmt.Errorf("insert student: %w", err)
		}

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert embeddings: %w", err)
			}
		}
		return nil
	})
}

// DeleteStudent removes the student and its embeddings in one transaction.
func (s *Store) DeleteStudent(ctx context.Context, studentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", studentID).Delete(&embeddingModel{}).Error; err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
		result := tx.Where("student_id = ?", studentID).Delete(&studentModel{})
		if result.Error != nil {
			return fmt.Errorf("delete student: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return database.ErrStudentNotFound
		}
		return nil
	})
}
