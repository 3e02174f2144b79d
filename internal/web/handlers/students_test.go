package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/embedder"
)

func createStudentsHandlerWithMocks(t *testing.T) (*StudentsHandler, *testEnv) {
	t.Helper()
	env := createTestEnv(t)
	return NewStudentsHandler(env.cfg, env.roster, env.controller), env
}

func TestStudentsHandler_Register_Success(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)
	env.embedder.byImage = map[string][]embedder.Face{
		"front": face([]float32{0, 0, 1, 0}),
		"left":  nil,
		"right": face([]float32{0, 0, 0.9, 0.1}),
	}
	loadsBefore := env.store.LoadCalls

	req := multipartRequest(t, "/api/students/register",
		map[string]string{"student_id": "STU002", "name": "Jane Roe"},
		"face_images", "front", "left", "right")
	recorder := httptest.NewRecorder()

	handler.Register(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp RegisterResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Message != "Student registered successfully" || resp.StudentID != "STU002" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.EmbeddingsCount != 2 {
		t.Errorf("expected embeddings_count=2, got %d", resp.EmbeddingsCount)
	}
	if len(resp.Rejected) != 1 || resp.Rejected[0].Pose != "left" {
		t.Errorf("expected left image rejected, got %+v", resp.Rejected)
	}
	if env.store.LoadCalls != loadsBefore+1 {
		t.Error("expected index reload after registration")
	}
	if env.index.Current().Students != 2 {
		t.Errorf("expected new student in index, got %d students", env.index.Current().Students)
	}
}

func TestStudentsHandler_Register_Duplicate(t *testing.T) {
	handler, _ := createStudentsHandlerWithMocks(t)

	req := multipartRequest(t, "/api/students/register",
		map[string]string{"student_id": "STU001", "name": "John Doe"}, "face_images", "img")
	recorder := httptest.NewRecorder()

	handler.Register(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "Student already exists")
}

func TestStudentsHandler_Register_NoValidFaces(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)
	env.embedder.defaults = nil

	req := multipartRequest(t, "/api/students/register",
		map[string]string{"student_id": "STU003", "name": "Nobody"}, "face_images", "a", "b")
	recorder := httptest.NewRecorder()

	handler.Register(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "No valid faces detected in the provided images")
}

func TestStudentsHandler_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []string
	}{
		{"no images", map[string]string{"student_id": "S", "name": "N"}, nil},
		{"too many images", map[string]string{"student_id": "S", "name": "N"}, []string{"1", "2", "3", "4"}},
		{"missing name", map[string]string{"student_id": "S"}, []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := createStudentsHandlerWithMocks(t)
			req := multipartRequest(t, "/api/students/register", tt.fields, "face_images", tt.files...)
			recorder := httptest.NewRecorder()

			handler.Register(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}
}

func TestStudentsHandler_Register_EmbedderDown(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)
	env.embedder.errs = map[string]error{"img": embedder.ErrUnavailable}

	req := multipartRequest(t, "/api/students/register",
		map[string]string{"student_id": "STU004", "name": "Ann"}, "face_images", "img")
	recorder := httptest.NewRecorder()

	handler.Register(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
}

func TestStudentsHandler_List(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)
	env.store.AddStudent(database.Student{StudentID: "STU002", Name: "Jiří Novák", CreatedAt: testNow}, nil)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/students/list", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Students []StudentResponse `json:"students"`
		Count    int               `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 2 || len(resp.Students) != 2 {
		t.Fatalf("expected 2 students, got %+v", resp)
	}
	if resp.Students[0].StudentID != "STU001" {
		t.Errorf("expected enrollment order, got %s first", resp.Students[0].StudentID)
	}

	recorder = httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/students/list?q=novak", nil))
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 1 || resp.Students[0].StudentID != "STU002" {
		t.Errorf("expected search to find STU002, got %+v", resp)
	}
}

func TestStudentsHandler_List_StoreError(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)
	env.store.ListError = errors.New("connection reset")

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/students/list", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestStudentsHandler_Get(t *testing.T) {
	handler, _ := createStudentsHandlerWithMocks(t)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/students/STU001", nil),
		map[string]string{"student_id": "STU001"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp StudentResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Name != "John Doe" {
		t.Errorf("expected John Doe, got %s", resp.Name)
	}

	req = requestWithChiParams(httptest.NewRequest("GET", "/api/students/NOPE", nil),
		map[string]string{"student_id": "NOPE"})
	recorder = httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Student not found")
}

func TestStudentsHandler_Delete_MakesStudentUnmatchable(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/students/STU001", nil),
		map[string]string{"student_id": "STU001"})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if !env.index.IsEmpty() {
		t.Error("expected index to be empty after delete and reload")
	}

	d, err := env.recognizer.RecognizeVector([]float32{1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if d.Candidate != nil {
		t.Errorf("deleted student still matched: %+v", d.Candidate)
	}

	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestStudentsHandler_ReloadFailureDoesNotFailWrite(t *testing.T) {
	handler, env := createStudentsHandlerWithMocks(t)
	env.store.LoadError = errors.New("timeout")

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/students/STU001", nil),
		map[string]string{"student_id": "STU001"})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if _, err := env.store.GetStudent(context.Background(), "STU001"); !errors.Is(err, database.ErrStudentNotFound) {
		t.Error("student should be deleted even if reload failed")
	}
}
