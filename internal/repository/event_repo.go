package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"sensor_alerts/internal/models"
)

// sqliteTimestampLayout is how occurred_at is written and compared.
const sqliteTimestampLayout = "2006-01-02 15:04:05"

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a new event. If EventID or OccurredAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.AlertEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var (
		temp      sql.NullFloat64
		readingAt sql.NullInt64
	)
	if e.ReadingAt != 0 {
		temp = sql.NullFloat64{Float64: e.Temperature, Valid: true}
		readingAt = sql.NullInt64{Int64: e.ReadingAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_events (id, device_id, occurred_at, type, temp_c, reading_at, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.EventID,
		e.DeviceID,
		e.OccurredAt.Format(sqliteTimestampLayout),
		normalizeType(e.Type),
		temp,
		readingAt,
		e.Description,
	)
	return err
}

// List returns events filtered by [from, to] (inclusive), type and device, ordered ASC.
func (r *EventSQLite) List(ctx context.Context, f EventFilter) ([]models.AlertEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC().Format(sqliteTimestampLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC().Format(sqliteTimestampLayout))
	}
	if typ := normalizeType(f.Type); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}
	if id := strings.TrimSpace(f.DeviceID); id != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, id)
	}

	q := `SELECT id, device_id, occurred_at, type, temp_c, reading_at, message FROM alert_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.AlertEvent, 0, 64)
	for rows.Next() {
		var (
			ev        models.AlertEvent
			temp      sql.NullFloat64
			readingAt sql.NullInt64
		)
		if err := rows.Scan(&ev.EventID, &ev.DeviceID, &ev.OccurredAt, &ev.Type, &temp, &readingAt, &ev.Description); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Temperature = temp.Float64
		ev.ReadingAt = readingAt.Int64
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
