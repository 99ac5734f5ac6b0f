package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scbackend/internal/domain"
	"scbackend/internal/ident"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrNotRegistered     = errors.New("registration not found")
	ErrEventFull         = errors.New("event is full")
	ErrLocationNotFound  = errors.New("location not found")
)

type Store struct {
	pool *pgxpool.Pool
}

// EventFilter selects events by exact date or from a date onwards.
type EventFilter struct {
	Date   string
	From   string
	Limit  int
	Offset int
}

type EventInput struct {
	Title           string
	Description     *string
	Date            string
	Time            string
	Location        *string
	MaxParticipants *int
	CreatedBy       *string
}

// EventPatch holds the fields to change; nil means unchanged.
type EventPatch struct {
	Title           *string
	Description     *string
	Date            *string
	Time            *string
	Location        *string
	MaxParticipants *int
}

type SOSLog struct {
	UserID     string
	Location   string
	Message    string
	CallStatus string
	CallSID    string
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			date DATE NOT NULL,
			time TIME NOT NULL,
			location TEXT,
			max_participants INT,
			created_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_date_time ON events(date, time);`,
		`CREATE TABLE IF NOT EXISTS event_registrations (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (event_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS sos_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			call_status TEXT NOT NULL DEFAULT '',
			call_sid TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS locations (
			user_id TEXT PRIMARY KEY,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			address TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			intent TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			reply TEXT NOT NULL,
			action_executed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_created ON interactions(user_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

const eventColumns = `id, title, description, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'),
	location, max_participants, created_by, created_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var ev domain.Event
	var createdAt time.Time
	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Time,
		&ev.Location, &ev.MaxParticipants, &ev.CreatedBy, &createdAt)
	if err != nil {
		return domain.Event{}, err
	}
	ev.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	var where []string
	var args []any
	if f.Date != "" {
		args = append(args, f.Date)
		where = append(where, fmt.Sprintf("date = $%d::date", len(args)))
	}
	if f.From != "" {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	args = append(args, f.Limit, max(f.Offset, 0))
	q += fmt.Sprintf(` ORDER BY date ASC, time ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Event, 0, f.Limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	ev, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, ErrEventNotFound
	}
	return ev, err
}

func (s *Store) CreateEvent(ctx context.Context, in EventInput) (domain.Event, error) {
	id := ident.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events(id, title, description, date, time, location, max_participants, created_by)
		VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8)
	`, id, in.Title, in.Description, in.Date, in.Time, in.Location, in.MaxParticipants, in.CreatedBy)
	if err != nil {
		return domain.Event{}, err
	}
	return s.GetEvent(ctx, id)
}

func (s *Store) UpdateEvent(ctx context.Context, id string, p EventPatch) (domain.Event, error) {
	var sets []string
	args := []any{id}
	add := func(col, cast string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), cast))
	}
	if p.Title != nil {
		add("title", "", *p.Title)
	}
	if p.Description != nil {
		add("description", "", *p.Description)
	}
	if p.Date != nil {
		add("date", "::date", *p.Date)
	}
	if p.Time != nil {
		add("time", "::time", *p.Time)
	}
	if p.Location != nil {
		add("location", "", *p.Location)
	}
	if p.MaxParticipants != nil {
		add("max_participants", "", *p.MaxParticipants)
	}
	if len(sets) == 0 {
		return s.GetEvent(ctx, id)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE events SET `+strings.Join(sets, ", ")+` WHERE id=$1`, args...)
	if err != nil {
		return domain.Event{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Event{}, ErrEventNotFound
	}
	return s.GetEvent(ctx, id)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// RegisterUser enforces max_participants under a row lock on the event.
func (s *Store) RegisterUser(ctx context.Context, eventID, userID string) (domain.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Registration{}, err
	}
	defer tx.Rollback(ctx)

	var capacity *int
	err = tx.QueryRow(ctx, `SELECT max_participants FROM events WHERE id=$1 FOR UPDATE`, eventID).Scan(&capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Registration{}, ErrEventNotFound
	}
	if err != nil {
		return domain.Registration{}, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM event_registrations WHERE event_id=$1 AND user_id=$2)
	`, eventID, userID).Scan(&exists); err != nil {
		return domain.Registration{}, err
	}
	if exists {
		return domain.Registration{}, ErrAlreadyRegistered
	}

	if capacity != nil {
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM event_registrations WHERE event_id=$1`, eventID).Scan(&n); err != nil {
			return domain.Registration{}, err
		}
		if n >= *capacity {
			return domain.Registration{}, ErrEventFull
		}
	}

	reg := domain.Registration{ID: ident.New(), EventID: eventID, UserID: userID}
	var createdAt time.Time
	if err := tx.QueryRow(ctx, `
		INSERT INTO event_registrations(id, event_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, reg.ID, eventID, userID).Scan(&createdAt); err != nil {
		return domain.Registration{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Registration{}, err
	}
	reg.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	return reg, nil
}

func (s *Store) UnregisterUser(ctx context.Context, eventID, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM event_registrations WHERE event_id=$1 AND user_id=$2`, eventID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRegistered
	}
	return nil
}

func (s *Store) ListParticipants(ctx context.Context, eventID string) ([]domain.Registration, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, user_id, created_at
		FROM event_registrations
		WHERE event_id=$1
		ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Registration, 0)
	for rows.Next() {
		var r domain.Registration
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) InsertSOSLog(ctx context.Context, l SOSLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sos_logs(user_id, location, message, call_status, call_sid)
		VALUES ($1, $2, $3, $4, $5)
	`, l.UserID, l.Location, l.Message, l.CallStatus, l.CallSID)
	return err
}

func (s *Store) UpsertLocation(ctx context.Context, loc domain.LocationUpdate) (domain.LocationUpdate, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations(user_id, latitude, longitude, address, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			address = EXCLUDED.address, source = EXCLUDED.source, updated_at = NOW()
		RETURNING updated_at
	`, loc.UserID, loc.Latitude, loc.Longitude, loc.Address, loc.Source).Scan(&updatedAt)
	if err != nil {
		return domain.LocationUpdate{}, err
	}
	loc.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return loc, nil
}

func (s *Store) GetLocation(ctx context.Context, userID string) (domain.LocationUpdate, error) {
	out := domain.LocationUpdate{UserID: userID}
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT latitude, longitude, address, source, updated_at
		FROM locations
		WHERE user_id=$1
	`, userID).Scan(&out.Latitude, &out.Longitude, &out.Address, &out.Source, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LocationUpdate{}, ErrLocationNotFound
	}
	if err != nil {
		return domain.LocationUpdate{}, err
	}
	out.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return out, nil
}

func (s *Store) InsertInteraction(ctx context.Context, in domain.Interaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interactions(user_id, source, message, intent, confidence, reply, action_executed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, in.UserID, in.Source, in.Message, in.Intent, in.Confidence, in.Reply, in.Executed)
	return err
}

// ListInteractions returns the newest interactions first.
func (s *Store) ListInteractions(ctx context.Context, userID string, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, source, message, intent, confidence, reply, action_executed, created_at
		FROM interactions
		WHERE user_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Interaction, 0, limit)
	for rows.Next() {
		var in domain.Interaction
		var createdAt time.Time
		if err := rows.Scan(&in.UserID, &in.Source, &in.Message, &in.Intent, &in.Confidence, &in.Reply, &in.Executed, &createdAt); err != nil {
			return nil, err
		}
		in.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		out = append(out, in)
	}
	return out, rows.Err()
}
