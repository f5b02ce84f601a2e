// Package journal keeps a history of mode transitions and connection
// attempts in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Transition is one committed mode change.
type Transition struct {
	ID        string    `json:"id"`
	From      wifi.Mode `json:"from"`
	To        wifi.Mode `json:"to"`
	Reason    string    `json:"reason"`
	SSID      string    `json:"ssid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Attempt is one finished connection attempt.
type Attempt struct {
	ID         string             `json:"id"`
	SSID       string             `json:"ssid"`
	Security   wifi.Security      `json:"security"`
	Status     wifi.AttemptStatus `json:"status"`
	Checks     int                `json:"checks"`
	Warnings   int                `json:"warnings"`
	Message    string             `json:"message"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Store reads and writes the journal tables.
type Store struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// New creates a journal over an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db, nowFunc: time.Now}
}

// RecordTransition stores a mode change and returns it.
func (s *Store) RecordTransition(ctx context.Context, from, to wifi.Mode, reason, ssid string) (Transition, error) {
	t := Transition{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Reason:    reason,
		SSID:      ssid,
		CreatedAt: s.nowFunc().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mode_transitions (id, from_mode, to_mode, reason, ssid, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.From), string(t.To), t.Reason, t.SSID, t.CreatedAt)
	if err != nil {
		return Transition{}, fmt.Errorf("record transition: %w", err)
	}
	return t, nil
}

// RecordAttempt stores a finished connection attempt. An empty ID is
// replaced with a new one.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = s.nowFunc()
	}
	a.StartedAt = a.StartedAt.UTC()
	a.FinishedAt = a.FinishedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connection_attempts (id, ssid, security, status, checks, warnings, message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SSID, string(a.Security), string(a.Status), a.Checks, a.Warnings, a.Message, a.StartedAt, a.FinishedAt)
	if err != nil {
		return Attempt{}, fmt.Errorf("record attempt: %w", err)
	}
	return a, nil
}

// Transitions returns the most recent mode changes, newest first.
func (s *Store) Transitions(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_mode, to_mode, reason, ssid, created_at FROM mode_transitions
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []Transition{}
	for rows.Next() {
		var t Transition
		var from, to string
		if err := rows.Scan(&t.ID, &from, &to, &t.Reason, &t.SSID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From, t.To = wifi.Mode(from), wifi.Mode(to)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Attempts returns the most recent connection attempts, newest first.
func (s *Store) Attempts(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ssid, security, status, checks, warnings, message, started_at, finished_at FROM connection_attempts
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		var sec, status string
		if err := rows.Scan(&a.ID, &a.SSID, &sec, &status, &a.Checks, &a.Warnings, &a.Message, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Security, a.Status = wifi.Security(sec), wifi.AttemptStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Prune deletes journal rows older than the cutoff and returns how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.nowFunc().Add(-olderThan).UTC()
	var total int64
	for _, q := range []string{
		`DELETE FROM mode_transitions WHERE created_at < ?`,
		`DELETE FROM connection_attempts WHERE started_at < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune journal: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
