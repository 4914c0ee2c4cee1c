// Package httpapi exposes the operator surface: room lifecycle, manual
// probes, pause/resume, and read access to samples and alerts.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/httpapi/middleware"
	"github.com/roomops/vcwatch/internal/notify"
	"github.com/roomops/vcwatch/internal/repo"
)

// Control is the slice of the scheduler the API needs. Split out so
// handler tests can run against a recording fake.
type Control interface {
	Add(ctx context.Context, room *domain.Room)
	Remove(id domain.RoomID)
	Pause(id domain.RoomID) error
	Resume(id domain.RoomID) error
	ProbeNow(id domain.RoomID, kind domain.ProbeKind) error
}

// Defaults fills the monitor config of rooms created without overrides.
type Defaults struct {
	CheckInterval    time.Duration
	TestCallInterval time.Duration
	Thresholds       domain.Thresholds
}

type Server struct {
	Logger    *zap.Logger
	Rooms     repo.RoomStore
	Samples   repo.SampleStore
	Alerts    repo.AlertStore
	Sched     Control
	Notifier  notify.Channel // test-notification target, may be Multi
	Defaults  Defaults
	Keys      middleware.Keys
	Origins   []string
	RateRPM   int
	RateBurst int
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	c := cors.AllowAll()
	if len(s.Origins) > 0 {
		c = cors.New(cors.Options{
			AllowedOrigins: s.Origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		})
	}
	r.Use(c.Handler)
	r.Use(middleware.RateLimit(s.RateRPM, s.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(s.Keys))
			r.Get("/rooms", s.handleListRooms)
			r.Get("/rooms/{id}", s.handleGetRoom)
			r.Get("/rooms/{id}/samples", s.handleListSamples)
			r.Get("/rooms/{id}/alerts", s.handleRoomAlerts)
			r.Get("/alerts", s.handleListAlerts)
			r.Post("/rooms/{id}/probe", s.handleProbeNow)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.Keys))
			r.Post("/rooms", s.handleAddRoom)
			r.Put("/rooms/{id}", s.handleUpdateRoom)
			r.Delete("/rooms/{id}", s.handleRemoveRoom)
			r.Post("/rooms/{id}/pause", s.handlePause)
			r.Post("/rooms/{id}/resume", s.handleResume)
			r.Post("/notifications/test", s.handleTestNotification)
		})
	})

	return r
}
