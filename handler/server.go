package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	app  *App
	auth *Authenticator
}

func NewServer(app *App, auth *Authenticator) *Server {
	return &Server{app: app, auth: auth}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/dispatch", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/points", s.listPoints)
		r.Get("/points/{id}", s.getPoint)

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", s.listIncidents)
			r.Post("/", s.createIncident)
			r.Get("/my_incidents", s.myIncidents)
			r.Get("/statistics", s.incidentStatistics)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getIncident)
				r.Get("/available_actions", s.availableActions)
				r.Post("/change_status", s.changeStatus)
				r.Post("/escalate", s.escalate)
				r.Get("/messages", s.listMessages)
				r.Post("/messages", s.createMessage)
			})
		})

		r.Route("/duties", func(r chi.Router) {
			r.Get("/", s.listDuties)
			r.Get("/my_duties", s.myDuties)
			r.Post("/reassign_by_notification", s.reassignByNotification)
			r.Get("/{id}", s.getDuty)
			r.Post("/{id}/open", s.openDuty)
			r.Post("/{id}/transfer_duty", s.transferDuty)
		})

		r.Get("/notifications", s.listNotifications)
		r.Post("/notifications/{id}/read", s.readNotification)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireDispatchAdmin)
			r.Get("/roles", s.listRoles)
			r.Post("/roles/{id}/schedule", s.scheduleRole)
			r.Post("/roles/{id}/clear", s.clearRole)
			r.Get("/roles/{id}/calendar", s.roleCalendar)
			r.Post("/reports/statistics/export", s.exportStatistics)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
