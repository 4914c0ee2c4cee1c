package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/repo"
)

var _ repo.RoomStore = (*Store)(nil)
var _ repo.SampleStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// storageErr wraps driver failures into the shared taxonomy so callers can
// distinguish a conflict from an outage without importing pgx.
func storageErr(op string, err error) error {
	kind := domain.StorageUnavailable
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		kind = domain.StorageConflict
	}
	return &domain.StorageError{Kind: kind, Op: op, Err: err}
}

// ---- RoomStore ----

func (s *Store) Add(ctx context.Context, r *domain.Room) error {
	if r.ID == "" {
		r.ID = domain.RoomID(makeID())
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	monitor, err := json.Marshal(r.Monitor)
	if err != nil {
		return fmt.Errorf("marshal monitor config: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, location, address, vendor_device_id, monitor, paused, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(r.ID), r.Name, r.Location, r.Address, r.VendorDeviceID, monitor, r.Paused, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return storageErr("insert room", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, r *domain.Room) error {
	r.UpdatedAt = time.Now().UTC()
	monitor, err := json.Marshal(r.Monitor)
	if err != nil {
		return fmt.Errorf("marshal monitor config: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms
		    SET name = $2, location = $3, address = $4, vendor_device_id = $5,
		        monitor = $6, paused = $7, updated_at = $8
		  WHERE id = $1`,
		string(r.ID), r.Name, r.Location, r.Address, r.VendorDeviceID, monitor, r.Paused, r.UpdatedAt,
	)
	if err != nil {
		return storageErr("update room", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.StorageError{Kind: domain.StorageConflict, Op: "update room", Err: fmt.Errorf("room %s not found", r.ID)}
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id domain.RoomID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, string(id)); err != nil {
		return storageErr("delete room", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	rooms, err := s.queryRooms(ctx, `WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return &rooms[0], nil
}

func (s *Store) SetPaused(ctx context.Context, id domain.RoomID, paused bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET paused = $2, updated_at = $3 WHERE id = $1`,
		string(id), paused, time.Now().UTC(),
	)
	if err != nil {
		return storageErr("pause room", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.StorageError{Kind: domain.StorageConflict, Op: "pause room", Err: fmt.Errorf("room %s not found", id)}
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) ([]domain.Room, error) {
	return s.queryRooms(ctx, `ORDER BY id`)
}

func (s *Store) queryRooms(ctx context.Context, tail string, args ...any) ([]domain.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, location, address, vendor_device_id, monitor, paused, created_at, updated_at
		   FROM rooms `+tail, args...)
	if err != nil {
		return nil, storageErr("list rooms", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var (
			r       domain.Room
			id      string
			monitor []byte
		)
		if err := rows.Scan(&id, &r.Name, &r.Location, &r.Address, &r.VendorDeviceID, &monitor, &r.Paused, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r.ID = domain.RoomID(id)
		if len(monitor) > 0 {
			if err := json.Unmarshal(monitor, &r.Monitor); err != nil {
				return nil, fmt.Errorf("decode monitor config: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- SampleStore ----

func (s *Store) Append(ctx context.Context, smp *domain.Sample) error {
	var call []byte
	if smp.Call != nil {
		var err error
		if call, err = json.Marshal(smp.Call); err != nil {
			return fmt.Errorf("marshal call metrics: %w", err)
		}
	}
	subs, err := json.Marshal(smp.Subsystems)
	if err != nil {
		return fmt.Errorf("marshal subsystems: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO samples
		   (room_id, ts, kind, outcome, subsystems, software_version, uptime_hours, temperature_c, call, detail)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(smp.RoomID), smp.Timestamp, string(smp.Kind), string(smp.Outcome),
		subs, smp.SoftwareVersion, smp.UptimeHours, smp.TemperatureC, call, smp.Detail,
	)
	if err != nil {
		return storageErr("insert sample", err)
	}
	return nil
}

func (s *Store) LoadRecent(ctx context.Context, id domain.RoomID, limit int) ([]domain.Sample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT room_id, ts, kind, outcome, subsystems, software_version, uptime_hours, temperature_c, call, detail
		   FROM samples
		  WHERE room_id = $1
		  ORDER BY ts DESC
		  LIMIT $2`,
		string(id), limit)
	if err != nil {
		return nil, storageErr("load samples", err)
	}
	defer rows.Close()

	var out []domain.Sample
	for rows.Next() {
		var (
			smp        domain.Sample
			roomID     string
			kind       string
			outcome    string
			subs, call []byte
		)
		if err := rows.Scan(&roomID, &smp.Timestamp, &kind, &outcome, &subs, &smp.SoftwareVersion, &smp.UptimeHours, &smp.TemperatureC, &call, &smp.Detail); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		smp.RoomID = domain.RoomID(roomID)
		smp.Kind = domain.ProbeKind(kind)
		smp.Outcome = domain.Outcome(outcome)
		if len(subs) > 0 {
			if err := json.Unmarshal(subs, &smp.Subsystems); err != nil {
				return nil, fmt.Errorf("decode subsystems: %w", err)
			}
		}
		if len(call) > 0 {
			smp.Call = &domain.CallMetrics{}
			if err := json.Unmarshal(call, smp.Call); err != nil {
				return nil, fmt.Errorf("decode call metrics: %w", err)
			}
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

func (s *Store) DeleteOlderThan(ctx context.Context, kind domain.ProbeKind, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM samples WHERE kind = $1 AND ts < $2`,
		string(kind), cutoff)
	if err != nil {
		return 0, storageErr("delete samples", err)
	}
	return tag.RowsAffected(), nil
}

func makeID() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}
