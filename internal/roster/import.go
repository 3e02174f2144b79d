package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/KP-101219/Quickroll-V2/internal/database"
)

const (
	metadataFile = "metadata.json"
	unknownName  = "Unknown"
)

var importExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// studentMetadata is the metadata.json written next to a student's images.
type studentMetadata struct {
	Name string `json:"name"`
}

// ImportProgress is called once per student directory after it is processed.
type ImportProgress func(studentID string)

// ImportResult summarises a directory import.
type ImportResult struct {
	Students   int               `json:"students"`
	Embeddings int               `json:"embeddings"`
	Skipped    []string          `json:"skipped"` // already enrolled
	Failed     map[string]string `json:"failed"`
}

// ImportDirectory enrolls every sub-directory of dir as one student. The
// directory name is the student id, metadata.json supplies the name, and
// images named front, left or right get that pose; any other image is
// stored with the import pose. Existing students are skipped.
func (s *Service) ImportDirectory(ctx context.Context, dir string, progress ImportProgress) (*ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read import directory: %w", err)
	}

	result := &ImportResult{Failed: make(map[string]string)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		studentID := entry.Name()
		added, err := s.importStudent(ctx, filepath.Join(dir, studentID), studentID)
		switch {
		case err == nil:
			result.Students++
			result.Embeddings += added
		case errors.Is(err, errAlreadyEnrolled):
			result.Skipped = append(result.Skipped, studentID)
		default:
			result.Failed[studentID] = err.Error()
		}
		if progress != nil {
			progress(studentID)
		}
	}
	return result, nil
}

var errAlreadyEnrolled = errors.New("already enrolled")

func (s *Service) importStudent(ctx context.Context, dir, studentID string) (int, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err == nil {
		return 0, errAlreadyEnrolled
	}

	name := readMetadataName(dir)
	images, poses, err := s.readImages(dir)
	if err != nil {
		return 0, err
	}
	if len(images) == 0 {
		return 0, ErrNoValidFaces
	}

	embeddings, _, err := s.embedAll(ctx, images, poses)
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 {
		return 0, ErrNoValidFaces
	}

	if err := s.store.CreateStudent(ctx, database.Student{StudentID: studentID, Name: name, CreatedAt: s.now()}, embeddings); err != nil {
		return 0, err
	}
	return len(embeddings), nil
}

func readMetadataName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return unknownName
	}
	var meta studentMetadata
	if err := json.Unmarshal(data, &meta); err != nil || strings.TrimSpace(meta.Name) == "" {
		return unknownName
	}
	return strings.TrimSpace(meta.Name)
}

// readImages returns image files in name order with their poses.
func (s *Service) readImages(dir string) ([][]byte, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var (
		images [][]byte
		poses  []string
	)
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || !slices.Contains(importExtensions, ext) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, nil, err
		}
		images = append(images, data)
		poses = append(poses, s.importPose(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))))
	}
	return images, poses, nil
}

func (s *Service) importPose(base string) string {
	base = strings.ToLower(base)
	if slices.Contains(s.cfg.Poses, base) {
		return base
	}
	if s.cfg.ImportPose != "" {
		return s.cfg.ImportPose
	}
	return "unknown"
}
