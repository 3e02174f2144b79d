package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newEmbedServer(t *testing.T, status int, resp any) (*httptest.Server, *[]byte) {
	t.Helper()
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
		} else {
			received, _ = io.ReadAll(file)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestEmbedFaces_ReturnsFacesLargestFirst(t *testing.T) {
	srv, received := newEmbedServer(t, http.StatusOK, map[string]any{
		"faces_count": 2,
		"model":       "buffalo_l",
		"faces": []map[string]any{
			{"face_index": 0, "dim": 3, "embedding": []float32{1, 0, 0}, "bbox": []float64{0, 0, 10, 10}, "det_score": 0.9},
			{"face_index": 1, "dim": 3, "embedding": []float32{0, 1, 0}, "bbox": []float64{0, 0, 50, 40}, "det_score": 0.8},
		},
	})

	client := NewClient(srv.URL+"/", 5*time.Second)
	img := testPNG(t, 32, 32)

	faces, err := client.EmbedFaces(context.Background(), img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if faces[0].Index != 1 {
		t.Errorf("expected largest face first, got index %d", faces[0].Index)
	}
	if !bytes.Equal(*received, img) {
		t.Error("small images should be sent unchanged")
	}
}

func TestEmbedFaces_NoFace(t *testing.T) {
	srv, _ := newEmbedServer(t, http.StatusOK, map[string]any{"faces_count": 0, "faces": []any{}})

	faces, err := NewClient(srv.URL, time.Second).EmbedFaces(context.Background(), testPNG(t, 8, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestEmbedFaces_ServerError(t *testing.T) {
	srv, _ := newEmbedServer(t, http.StatusInternalServerError, map[string]string{"detail": "model not loaded"})

	_, err := NewClient(srv.URL, time.Second).EmbedFaces(context.Background(), testPNG(t, 8, 8))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmbedFaces_RejectedImage(t *testing.T) {
	srv, _ := newEmbedServer(t, http.StatusBadRequest, map[string]string{"detail": "Invalid image"})

	_, err := NewClient(srv.URL, time.Second).EmbedFaces(context.Background(), testPNG(t, 8, 8))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestEmbedFaces_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).EmbedFaces(context.Background(), testPNG(t, 8, 8))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmbedFaces_InvalidImageNeverSent(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).EmbedFaces(context.Background(), []byte("definitely not an image"))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
	if called {
		t.Error("invalid image should not reach the embedder")
	}
}

func TestPrepareImage_Downscales(t *testing.T) {
	img := testPNG(t, 200, 100)

	out, err := PrepareImage(img, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Errorf("expected 50x25, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPrepareImage_Empty(t *testing.T) {
	if _, err := PrepareImage(nil, 100); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestLargest(t *testing.T) {
	if _, ok := Largest(nil); ok {
		t.Error("expected no face for empty input")
	}

	faces := []Face{
		{Index: 0, BBox: []float64{0, 0, 5, 5}},
		{Index: 1, BBox: []float64{10, 10, 40, 40}},
		{Index: 2},
	}
	got, ok := Largest(faces)
	if !ok || got.Index != 1 {
		t.Errorf("expected face 1, got %+v", got)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}
