package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/domain"
)

// roomPayload is the create/update body. Zero-valued monitor fields fall
// back to the fleet defaults.
type roomPayload struct {
	ID                 string             `json:"id,omitempty"`
	Name               string             `json:"name"`
	Location           string             `json:"location,omitempty"`
	Address            string             `json:"address,omitempty"`
	VendorDeviceID     string             `json:"vendor_device_id,omitempty"`
	CheckIntervalMS    int                `json:"check_interval_ms,omitempty"`
	TestCallIntervalMS int                `json:"test_call_interval_ms,omitempty"`
	HealthCheckEnabled *bool              `json:"health_check_enabled,omitempty"`
	TestCallEnabled    *bool              `json:"test_call_enabled,omitempty"`
	Thresholds         *domain.Thresholds `json:"thresholds,omitempty"`
	Paused             bool               `json:"paused,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// storeStatus maps storage failures onto HTTP codes.
func storeStatus(err error) int {
	var se *domain.StorageError
	if errors.As(err, &se) && se.Kind == domain.StorageConflict {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (s *Server) defaultMonitor() domain.MonitorConfig {
	return domain.MonitorConfig{
		CheckInterval:      s.Defaults.CheckInterval,
		TestCallInterval:   s.Defaults.TestCallInterval,
		HealthCheckEnabled: true,
		TestCallEnabled:    true,
		Thresholds:         s.Defaults.Thresholds,
	}
}

// mergeMonitor overlays the payload's set fields onto base.
func mergeMonitor(base domain.MonitorConfig, p *roomPayload) domain.MonitorConfig {
	m := base
	if p.CheckIntervalMS > 0 {
		m.CheckInterval = time.Duration(p.CheckIntervalMS) * time.Millisecond
	}
	if p.TestCallIntervalMS > 0 {
		m.TestCallInterval = time.Duration(p.TestCallIntervalMS) * time.Millisecond
	}
	if p.HealthCheckEnabled != nil {
		m.HealthCheckEnabled = *p.HealthCheckEnabled
	}
	if p.TestCallEnabled != nil {
		m.TestCallEnabled = *p.TestCallEnabled
	}
	if p.Thresholds != nil {
		m.Thresholds = *p.Thresholds
	}
	if m.Thresholds.FailuresToDown < m.Thresholds.FailuresToDegraded {
		m.Thresholds.FailuresToDown = m.Thresholds.FailuresToDegraded
	}
	return m
}

func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request) {
	var p roomPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if p.Address == "" && p.VendorDeviceID == "" {
		writeError(w, http.StatusBadRequest, "address or vendor_device_id is required")
		return
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	room := &domain.Room{
		ID:             domain.RoomID(id),
		Name:           p.Name,
		Location:       p.Location,
		Address:        p.Address,
		VendorDeviceID: p.VendorDeviceID,
		Monitor:        mergeMonitor(s.defaultMonitor(), &p),
		Paused:         p.Paused,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.Rooms.Add(r.Context(), room); err != nil {
		writeError(w, storeStatus(err), "could not add room")
		return
	}
	// Schedule straight away; the reconcile loop would also catch it, but
	// this way the first health check runs before the caller's next poll.
	s.Sched.Add(r.Context(), room)

	s.Logger.Info("room_added",
		zap.String("room_id", string(room.ID)),
		zap.String("name", room.Name),
	)
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	room, err := s.Rooms.Get(r.Context(), id)
	if err != nil {
		writeError(w, storeStatus(err), "lookup failed")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	var p roomPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Name != "" {
		room.Name = p.Name
	}
	if p.Location != "" {
		room.Location = p.Location
	}
	if p.Address != "" {
		room.Address = p.Address
	}
	if p.VendorDeviceID != "" {
		room.VendorDeviceID = p.VendorDeviceID
	}
	room.Monitor = mergeMonitor(room.Monitor, &p)

	if err := s.Rooms.Update(r.Context(), room); err != nil {
		writeError(w, storeStatus(err), "could not update room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleRemoveRoom(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	if err := s.Rooms.Remove(r.Context(), id); err != nil {
		writeError(w, storeStatus(err), "could not remove room")
		return
	}
	s.Sched.Remove(id)
	s.Logger.Info("room_removed", zap.String("room_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.Rooms.Snapshot(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), "list failed")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	room, err := s.Rooms.Get(r.Context(), id)
	if err != nil {
		writeError(w, storeStatus(err), "lookup failed")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	if err := s.Rooms.SetPaused(r.Context(), id, paused); err != nil {
		writeError(w, storeStatus(err), "room not found")
		return
	}
	// Apply to the live runner too so the change lands before the next
	// reconcile tick. A not-yet-scheduled room is fine; reconcile aligns it.
	if paused {
		_ = s.Sched.Pause(id)
	} else {
		_ = s.Sched.Resume(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "paused": paused})
}

func (s *Server) handleProbeNow(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	kind := domain.ProbeKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = domain.ProbeHealthCheck
	}
	if kind != domain.ProbeHealthCheck && kind != domain.ProbeTestCall {
		writeError(w, http.StatusBadRequest, "unknown probe kind")
		return
	}
	if err := s.Sched.ProbeNow(id, kind); err != nil {
		writeError(w, http.StatusNotFound, "room is not scheduled")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "kind": kind})
}

func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	limit := queryLimit(r, 50, 500)
	samples, err := s.Samples.LoadRecent(r.Context(), id, limit)
	if err != nil {
		writeError(w, storeStatus(err), "samples failed")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleRoomAlerts(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	alerts, err := s.Alerts.LoadOpen(r.Context(), id)
	if err != nil {
		writeError(w, storeStatus(err), "alerts failed")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("open") == "true" {
		alerts, err := s.Alerts.LoadOpenAll(r.Context())
		if err != nil {
			writeError(w, storeStatus(err), "alerts failed")
			return
		}
		writeJSON(w, http.StatusOK, alerts)
		return
	}
	limit := queryLimit(r, 50, 500)
	alerts, err := s.Alerts.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, storeStatus(err), "alerts failed")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleTestNotification pushes a synthetic alert through the configured
// channels so operators can verify SMTP and ServiceNow wiring.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if s.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "no notification channels configured")
		return
	}
	now := time.Now().UTC()
	ev := alert.Event{
		Type: alert.EventOpened,
		Alert: domain.Alert{
			ID:        uuid.NewString(),
			RoomID:    "test-room",
			DedupeKey: "test-room/network",
			Severity:  domain.SeverityInfo,
			Cause:     "test notification requested by an operator",
			OpenedAt:  now,
		},
		Room: domain.Room{ID: "test-room", Name: "Test Room"},
		Status: domain.HealthStatus{
			RoomID:    "test-room",
			Verdict:   domain.VerdictDegraded,
			ChangedAt: now,
			Cause:     "test notification",
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := s.Notifier.Send(ctx, ev); err != nil {
		s.Logger.Warn("test_notification_failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
