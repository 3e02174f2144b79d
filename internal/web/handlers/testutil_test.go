package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/attendance"
	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/database/mock"
	"github.com/KP-101219/Quickroll-V2/internal/embedder"
	"github.com/KP-101219/Quickroll-V2/internal/recognition"
	"github.com/KP-101219/Quickroll-V2/internal/roster"
	"github.com/go-chi/chi/v5"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Recognition: config.RecognitionConfig{
			RecognizedThreshold: 0.75,
			MaybeThreshold:      0.50,
			TopMatchMinScore:    0.40,
			Poses:               []string{"front", "left", "right"},
			ImportPose:          "unknown",
		},
		Attendance: config.AttendanceConfig{
			MarkedBy:    "face_recognition",
			ConfirmedBy: "manual_confirmation",
			Timezone:    "UTC",
		},
		Web: config.WebConfig{Host: "127.0.0.1", Port: 8000},
	}
}

// fakeEmbedder returns faces keyed by the uploaded bytes. Unknown payloads
// fall back to the default faces.
type fakeEmbedder struct {
	byImage  map[string][]embedder.Face
	errs     map[string]error
	defaults []embedder.Face
}

func (f *fakeEmbedder) EmbedFaces(ctx context.Context, image []byte) ([]embedder.Face, error) {
	if err, ok := f.errs[string(image)]; ok {
		return nil, err
	}
	if faces, ok := f.byImage[string(image)]; ok {
		return faces, nil
	}
	return f.defaults, nil
}

func face(v []float32) []embedder.Face {
	return []embedder.Face{{Embedding: v, BBox: []float64{0, 0, 100, 100}}}
}

// unitAt returns a 4-dim vector whose cosine with [1,0,0,0] is cos.
func unitAt(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos)), 0, 0}
}

// testEnv wires the engine around a mock store and fake embedder.
type testEnv struct {
	cfg        *config.Config
	store      *mock.MockStore
	embedder   *fakeEmbedder
	index      *recognition.Store
	controller *recognition.Controller
	recognizer *recognition.Recognizer
	roster     *roster.Service
	ledger     *attendance.Service
	hub        *LiveHub
}

var testNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

// createTestEnv builds services with STU001 enrolled at cosine 0.89 to the
// default query face [1,0,0,0].
func createTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	store := mock.NewMockStore()
	store.AddStudent(database.Student{StudentID: "STU001", Name: "John Doe", CreatedAt: testNow.Add(-time.Hour)},
		map[string][]float32{"front": unitAt(0.89)})

	fe := &fakeEmbedder{defaults: face([]float32{1, 0, 0, 0})}
	index := recognition.NewStore(0)
	ctrl := recognition.NewController(store, index, time.Second)
	if _, err := ctrl.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	classifier, err := recognition.NewClassifier(recognition.Thresholds{
		Recognized: cfg.Recognition.RecognizedThreshold,
		Maybe:      cfg.Recognition.MaybeThreshold,
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := recognition.NewRecognizer(fe, recognition.NewMatcher(index, recognition.Cosine{}), classifier)

	rs := roster.NewService(store, fe, &cfg.Recognition, 0)
	rs.SetClock(func() time.Time { return testNow })
	ledger := attendance.NewService(store, rec, &cfg.Attendance)
	ledger.SetClock(func() time.Time { return testNow })
	hub := NewLiveHub()
	ledger.SetNotifier(hub)

	return &testEnv{
		cfg: cfg, store: store, embedder: fe, index: index, controller: ctrl,
		recognizer: rec, roster: rs, ledger: ledger, hub: hub,
	}
}

// multipartRequest builds a multipart POST with string fields and files
// under fileField.
func multipartRequest(t *testing.T, path string, fields map[string]string, fileField string, files ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for i, content := range files {
		part, err := w.CreateFormFile(fileField, "image"+string(rune('0'+i))+".jpg")
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
