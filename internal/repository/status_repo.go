package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sensor_alerts/internal/models"
)

type StatusSQLite struct {
	db *sql.DB
}

func NewStatusSQLite(db *sql.DB) *StatusSQLite {
	return &StatusSQLite{db: db}
}

const (
	upsertStatusSQL = `
		INSERT INTO device_status (device_id, temp_c, reading_at, alerting, cooldown_until, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			temp_c=excluded.temp_c,
			reading_at=excluded.reading_at,
			alerting=excluded.alerting,
			cooldown_until=excluded.cooldown_until,
			updated_at=excluded.updated_at
	`

	selectStatusColumns = `SELECT device_id, temp_c, reading_at, alerting, cooldown_until, updated_at FROM device_status`
)

// Save upserts the row of s.DeviceID. Zero UpdatedAt is set to now.
// CooldownUntil is stored as 0 while the device is not alerting.
func (r *StatusSQLite) Save(ctx context.Context, s models.DeviceStatus) error {
	tsUTC := s.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}
	cooldown := s.CooldownUntil
	if !s.Alerting {
		cooldown = 0
	}

	_, err := r.db.ExecContext(ctx, upsertStatusSQL,
		s.DeviceID,
		s.Temperature,
		s.ReadingAt,
		s.Alerting,
		cooldown,
		tsUTC,
	)
	return err
}

// Get returns the snapshot of one device or ErrNotFound.
func (r *StatusSQLite) Get(ctx context.Context, deviceID string) (models.DeviceStatus, error) {
	row := r.db.QueryRowContext(ctx, selectStatusColumns+` WHERE device_id = ?`, deviceID)
	s, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeviceStatus{}, ErrNotFound
	}
	return s, err
}

// List returns all snapshots ordered by device id.
func (r *StatusSQLite) List(ctx context.Context) ([]models.DeviceStatus, error) {
	rows, err := r.db.QueryContext(ctx, selectStatusColumns+` ORDER BY device_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DeviceStatus, 0, 8)
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(sc scanner) (models.DeviceStatus, error) {
	var s models.DeviceStatus
	if err := sc.Scan(
		&s.DeviceID,
		&s.Temperature,
		&s.ReadingAt,
		&s.Alerting,
		&s.CooldownUntil,
		&s.UpdatedAt,
	); err != nil {
		return models.DeviceStatus{}, err
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
