package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a dashboard overview captured at a point in time.
type Snapshot struct {
	ID                string          `json:"id"`
	Period            string          `json:"period"`
	StartDate         string          `json:"startDate,omitempty"`
	EndDate           string          `json:"endDate,omitempty"`
	CapturedAt        time.Time       `json:"capturedAt"`
	TotalStudents     int             `json:"totalStudents"`
	BusyStudents      int             `json:"busyStudents"`
	BusyPercentage    float64         `json:"busyPercentage"`
	TotalClubs        int             `json:"totalClubs"`
	Sessions          int             `json:"sessions"`
	AverageAttendance float64         `json:"averageAttendance"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// Repository persists snapshots in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the snapshot table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS period_snapshots (
			id                 TEXT PRIMARY KEY,
			period             TEXT NOT NULL,
			start_date         DATE,
			end_date           DATE,
			captured_at        TIMESTAMPTZ NOT NULL,
			total_students     INTEGER NOT NULL,
			busy_students      INTEGER NOT NULL,
			busy_percentage    DOUBLE PRECISION NOT NULL,
			total_clubs        INTEGER NOT NULL,
			sessions           INTEGER NOT NULL,
			average_attendance DOUBLE PRECISION NOT NULL,
			payload            JSONB
		)
	`)
	if err != nil {
		return fmt.Errorf("create period_snapshots: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS period_snapshots_period_captured_idx
		ON period_snapshots (period, captured_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("create period_snapshots index: %w", err)
	}
	return nil
}

// Save writes a snapshot, assigning an id and capture time when unset.
func (r *Repository) Save(ctx context.Context, s Snapshot) (Snapshot, error) {
	if s.Period == "" {
		return Snapshot{}, errors.New("snapshot period required")
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now().UTC()
	}
	if s.ID == "" {
		s.ID = ulid.MustNew(ulid.Timestamp(s.CapturedAt), ulid.DefaultEntropy()).String()
	}
	var payload any
	if len(s.Payload) > 0 {
		payload = []byte(s.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO period_snapshots (
			id, period, start_date, end_date, captured_at, total_students, busy_students,
			busy_percentage, total_clubs, sessions, average_attendance, payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, s.ID, s.Period, nullDate(s.StartDate), nullDate(s.EndDate), s.CapturedAt,
		s.TotalStudents, s.BusyStudents, s.BusyPercentage, s.TotalClubs, s.Sessions,
		s.AverageAttendance, payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return s, nil
}

// List returns the newest snapshots, optionally of one period.
func (r *Repository) List(ctx context.Context, period string, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectSnapshots+`
		WHERE ($1 = '' OR period = $1)
		ORDER BY captured_at DESC, id DESC
		LIMIT $2
	`, period, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0, limit)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot of period.
func (r *Repository) Latest(ctx context.Context, period string) (Snapshot, error) {
	row := r.db.QueryRowContext(ctx, selectSnapshots+`
		WHERE period = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT 1
	`, period)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return s, err
}

const selectSnapshots = `
	SELECT id, period, start_date, end_date, captured_at, total_students, busy_students,
	       busy_percentage, total_clubs, sessions, average_attendance, payload
	FROM period_snapshots`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var (
		s          Snapshot
		start, end sql.NullTime
		payload    []byte
	)
	err := row.Scan(&s.ID, &s.Period, &start, &end, &s.CapturedAt, &s.TotalStudents,
		&s.BusyStudents, &s.BusyPercentage, &s.TotalClubs, &s.Sessions, &s.AverageAttendance, &payload)
	if err != nil {
		return Snapshot{}, err
	}
	s.StartDate = formatDate(start)
	s.EndDate = formatDate(end)
	if len(payload) > 0 {
		s.Payload = json.RawMessage(payload)
	}
	return s, nil
}

func nullDate(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func formatDate(v sql.NullTime) string {
	if !v.Valid {
		return ""
	}
	return v.Time.Format("2006-01-02")
}
