package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/database/mock"
	"github.com/KP-101219/Quickroll-V2/internal/embedder"
)

// fakeEmbedder returns faces keyed by the image payload.
type fakeEmbedder struct {
	faces map[string][]embedder.Face
	errs  map[string]error
	calls int
}

func (f *fakeEmbedder) EmbedFaces(ctx context.Context, image []byte) ([]embedder.Face, error) {
	f.calls++
	if err, ok := f.errs[string(image)]; ok {
		return nil, err
	}
	return f.faces[string(image)], nil
}

func face(v ...float32) []embedder.Face {
	return []embedder.Face{{Embedding: v, BBox: []float64{0, 0, 10, 10}}}
}

func testRecognitionConfig() *config.RecognitionConfig {
	return &config.RecognitionConfig{Poses: []string{"front", "left", "right"}, ImportPose: "unknown"}
}

func newTestService(fe *fakeEmbedder) (*Service, *mock.MockStore) {
	store := mock.NewMockStore()
	s := NewService(store, fe, testRecognitionConfig(), 0)
	s.SetClock(func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) })
	return s, store
}

func TestEnroll_SkipsImageWithoutFace(t *testing.T) {
	fe := &fakeEmbedder{faces: map[string][]embedder.Face{
		"front": face(1, 0, 0),
		"left":  nil,
		"right": face(0, 1, 0),
	}}
	s, store := newTestService(fe)

	res, err := s.Enroll(context.Background(), " STU001 ", "John Doe", [][]byte{[]byte("front"), []byte("left"), []byte("right")})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.StudentID != "STU001" {
		t.Errorf("expected trimmed id STU001, got %q", res.StudentID)
	}
	if res.EmbeddingsCount != 2 {
		t.Errorf("expected 2 embeddings, got %d", res.EmbeddingsCount)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Pose != "left" || res.Rejected[0].Reason != ReasonNoFace {
		t.Errorf("unexpected rejected list: %+v", res.Rejected)
	}

	enrolled, _ := store.LoadEnrollment(context.Background())
	if len(enrolled) != 1 || len(enrolled[0].Embeddings) != 2 {
		t.Fatalf("expected one student with 2 embeddings, got %+v", enrolled)
	}
	poses := []string{enrolled[0].Embeddings[0].Pose, enrolled[0].Embeddings[1].Pose}
	if poses[0] != "front" || poses[1] != "right" {
		t.Errorf("expected poses front,right got %v", poses)
	}
}

func TestEnroll_NoValidFaces(t *testing.T) {
	fe := &fakeEmbedder{errs: map[string]error{"bad": embedder.ErrInvalidImage}}
	s, store := newTestService(fe)

	res, err := s.Enroll(context.Background(), "STU002", "Jane", [][]byte{[]byte("bad"), []byte("empty")})
	if !errors.Is(err, ErrNoValidFaces) {
		t.Fatalf("expected ErrNoValidFaces, got %v", err)
	}
	if res == nil || len(res.Rejected) != 2 || res.Rejected[0].Reason != ReasonInvalidImage {
		t.Errorf("unexpected rejected list: %+v", res)
	}
	if _, err := store.GetStudent(context.Background(), "STU002"); !errors.Is(err, database.ErrStudentNotFound) {
		t.Error("student must not be written when no face is found")
	}
}

func TestEnroll_EmbedderUnavailableAborts(t *testing.T) {
	fe := &fakeEmbedder{
		faces: map[string][]embedder.Face{"front": face(1, 0)},
		errs:  map[string]error{"left": embedder.ErrUnavailable},
	}
	s, store := newTestService(fe)

	_, err := s.Enroll(context.Background(), "STU003", "Ann", [][]byte{[]byte("front"), []byte("left")})
	if !errors.Is(err, embedder.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if n, _ := store.CountEmbeddings(context.Background()); n != 0 {
		t.Errorf("expected no writes, got %d embeddings", n)
	}
}

func TestEnroll_Duplicate(t *testing.T) {
	fe := &fakeEmbedder{faces: map[string][]embedder.Face{"img": face(1, 0)}}
	s, _ := newTestService(fe)

	if _, err := s.Enroll(context.Background(), "STU004", "Bob", [][]byte{[]byte("img")}); err != nil {
		t.Fatalf("first Enroll: %v", err)
	}
	calls := fe.calls
	_, err := s.Enroll(context.Background(), "STU004", "Bob", [][]byte{[]byte("img")})
	if !errors.Is(err, database.ErrStudentExists) {
		t.Fatalf("expected ErrStudentExists, got %v", err)
	}
	if fe.calls != calls {
		t.Error("duplicate enrollment should not call the embedder")
	}
}

func TestEnroll_InvalidInput(t *testing.T) {
	s, _ := newTestService(&fakeEmbedder{})
	img := []byte("x")

	tests := []struct {
		name   string
		id     string
		person string
		images [][]byte
	}{
		{"missing id", " ", "Bob", [][]byte{img}},
		{"missing name", "S1", "", [][]byte{img}},
		{"no images", "S1", "Bob", nil},
		{"too many images", "S1", "Bob", [][]byte{img, img, img, img}},
		{"id too long", strings.Repeat("x", 65), "Bob", [][]byte{img}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Enroll(context.Background(), tt.id, tt.person, tt.images); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestEnroll_DimensionMismatch(t *testing.T) {
	fe := &fakeEmbedder{faces: map[string][]embedder.Face{
		"a": face(1, 0, 0),
		"b": face(1, 0),
	}}
	s, _ := newTestService(fe)

	res, err := s.Enroll(context.Background(), "S9", "Dim", [][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.EmbeddingsCount != 1 || len(res.Rejected) != 1 || res.Rejected[0].Reason != ReasonDimensionMismatch {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestListAndDelete(t *testing.T) {
	s, store := newTestService(&fakeEmbedder{})
	store.AddStudent(database.Student{StudentID: "STU001", Name: "Jiří Novák", CreatedAt: time.Unix(1, 0)}, nil)
	store.AddStudent(database.Student{StudentID: "STU002", Name: "Jane Doe", CreatedAt: time.Unix(2, 0)}, nil)

	all, err := s.List(context.Background(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List: %v, %d", err, len(all))
	}
	found, _ := s.List(context.Background(), "jiri")
	if len(found) != 1 || found[0].StudentID != "STU001" {
		t.Errorf("diacritic-insensitive search failed: %+v", found)
	}
	found, _ = s.List(context.Background(), "stu002")
	if len(found) != 1 || found[0].Name != "Jane Doe" {
		t.Errorf("id search failed: %+v", found)
	}

	if err := s.Delete(context.Background(), "STU001"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(context.Background(), "STU001"); !errors.Is(err, database.ErrStudentNotFound) {
		t.Errorf("expected ErrStudentNotFound on second delete, got %v", err)
	}
	if _, err := s.Get(context.Background(), "STU001"); !errors.Is(err, database.ErrStudentNotFound) {
		t.Errorf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN  DOE", "john doe"},
		{"Žluťoučký_kůň", "zlutoucky kun"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.expected {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "STU001", "metadata.json"), `{"name": "John Doe"}`)
	writeFile(t, filepath.Join(dir, "STU001", "front.jpg"), "front")
	writeFile(t, filepath.Join(dir, "STU001", "1700000000.jpg"), "other")
	writeFile(t, filepath.Join(dir, "STU001", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "STU002", "a.jpg"), "noface")
	writeFile(t, filepath.Join(dir, "STU003", "front.png"), "front")
	writeFile(t, filepath.Join(dir, "README.md"), "not a student")

	fe := &fakeEmbedder{faces: map[string][]embedder.Face{
		"front": face(1, 0),
		"other": face(0, 1),
	}}
	s, store := newTestService(fe)
	store.AddStudent(database.Student{StudentID: "STU003", Name: "Existing"}, nil)

	var seen []string
	res, err := s.ImportDirectory(context.Background(), dir, func(id string) { seen = append(seen, id) })
	if err != nil {
		t.Fatalf("ImportDirectory: %v", err)
	}
	if res.Students != 1 || res.Embeddings != 2 {
		t.Errorf("expected 1 student / 2 embeddings, got %d / %d", res.Students, res.Embeddings)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "STU003" {
		t.Errorf("expected STU003 skipped, got %v", res.Skipped)
	}
	if _, ok := res.Failed["STU002"]; !ok {
		t.Errorf("expected STU002 to fail, got %v", res.Failed)
	}
	if len(seen) != 3 {
		t.Errorf("expected progress for 3 directories, got %v", seen)
	}

	st, err := store.GetStudent(context.Background(), "STU001")
	if err != nil || st.Name != "John Doe" {
		t.Fatalf("GetStudent: %v %+v", err, st)
	}
	enrolled, _ := store.LoadEnrollment(context.Background())
	for _, e := range enrolled {
		if e.StudentID != "STU001" {
			continue
		}
		// 1700000000.jpg sorts before front.jpg.
		if e.Embeddings[0].Pose != "unknown" || e.Embeddings[1].Pose != "front" {
			t.Errorf("unexpected poses: %s, %s", e.Embeddings[0].Pose, e.Embeddings[1].Pose)
		}
	}
}
