package service

import (
	"context"

	"sensor_alerts/internal/models"
	"sensor_alerts/internal/repository"
)

// Monitoring exposes the latest reading and alert state per device.
type Monitoring interface {
	ListDevices(ctx context.Context) ([]models.DeviceStatus, error)
	GetDevice(ctx context.Context, deviceID string) (models.DeviceStatus, error)
}

// EventLog exposes the alert log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.AlertEvent, error)
}

// Service aggregates the read-only services behind the status API.
type Service struct {
	Monitoring
	EventLog
}

// NewService wires the repositories into services. deviceIDs is the
// registry order; only those devices are reported.
func NewService(repos *repository.Repository, deviceIDs []string) *Service {
	return &Service{
		Monitoring: NewMonitoringService(repos.StatusRepo, deviceIDs),
		EventLog:   NewEventLogService(repos.EventRepo),
	}
}
