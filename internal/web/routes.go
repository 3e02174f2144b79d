package web

import (
	"github.com/KP-101219/Quickroll-V2/internal/web/handlers"
	"github.com/KP-101219/Quickroll-V2/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	studentsHandler := handlers.NewStudentsHandler(s.config, s.services.Roster, s.services.Reloader)
	recognitionHandler := handlers.NewRecognitionHandler(s.config, s.services.Recognizer, s.services.Reloader)
	attendanceHandler := handlers.NewAttendanceHandler(s.config, s.services.Attendance)
	liveHandler := handlers.NewLiveHandler(s.services.Hub, s.services.Attendance,
		middleware.OriginChecker(s.config.Web.AllowedOrigins))

	s.router.Get("/", handlers.Root)
	s.router.Get("/health", handlers.HealthCheck)

	// The live feed is long-lived and stays outside the request timeout.
	s.router.Get("/api/attendance/live", liveHandler.Serve)

	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		// Students
		r.Post("/api/students/register", studentsHandler.Register)
		r.Get("/api/students/list", studentsHandler.List)
		r.Get("/api/students/{student_id}", studentsHandler.Get)
		r.Delete("/api/students/{student_id}", studentsHandler.Delete)

		// Recognition
		r.Post("/api/recognition/recognize", recognitionHandler.Recognize)
		r.Post("/api/recognition/top-matches", recognitionHandler.TopMatches)
		r.Post("/api/recognition/reload-database", recognitionHandler.ReloadDatabase)

		// Attendance
		r.Post("/api/attendance/mark", attendanceHandler.Mark)
		r.Post("/api/attendance/confirm", attendanceHandler.Confirm)
		r.Get("/api/attendance/history", attendanceHandler.History)
		r.Get("/api/attendance/today", attendanceHandler.Today)
	})
}
