package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sensor_alerts/internal/models"
)

// ErrNotFound is returned when a device has no stored status yet.
var ErrNotFound = errors.New("not found")

// StatusRepo keeps the latest snapshot per device. Only the newest reading
// is kept; there is no history.
type StatusRepo interface {
	Save(ctx context.Context, s models.DeviceStatus) error
	Get(ctx context.Context, deviceID string) (models.DeviceStatus, error)
	List(ctx context.Context) ([]models.DeviceStatus, error)
}

// EventFilter narrows an event listing. Zero values mean "no bound".
type EventFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	DeviceID string
}

// EventRepo is the append-only alert log.
type EventRepo interface {
	Append(ctx context.Context, e models.AlertEvent) error
	List(ctx context.Context, f EventFilter) ([]models.AlertEvent, error)
}

type Repository struct {
	StatusRepo StatusRepo
	EventRepo  EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StatusRepo: NewStatusSQLite(db),
		EventRepo:  NewEventSQLite(db),
	}
}
