package service

import (
	"context"
	"errors"
	"time"

	"sensor_alerts/internal/models"
	"sensor_alerts/internal/repository"
)

// ErrUnknownDevice is returned for ids that are not in the registry.
var ErrUnknownDevice = errors.New("unknown device")

type MonitoringService struct {
	statusRepo repository.StatusRepo
	deviceIDs  []string
	known      map[string]struct{}
}

func NewMonitoringService(statusRepo repository.StatusRepo, deviceIDs []string) *MonitoringService {
	known := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		known[id] = struct{}{}
	}
	return &MonitoringService{
		statusRepo: statusRepo,
		deviceIDs:  append([]string(nil), deviceIDs...),
		known:      known,
	}
}

// ListDevices returns one status per registered device in registry order.
// Devices not polled yet get a baseline snapshot.
func (s *MonitoringService) ListDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	stored, err := s.statusRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.DeviceStatus, len(stored))
	for _, st := range stored {
		byID[st.DeviceID] = st
	}

	out := make([]models.DeviceStatus, 0, len(s.deviceIDs))
	for _, id := range s.deviceIDs {
		st, ok := byID[id]
		if !ok {
			st = baselineStatus(id)
		}
		st.UpdatedAt = toUTC(st.UpdatedAt)
		out = append(out, st)
	}
	return out, nil
}

// GetDevice returns the status of one registered device.
func (s *MonitoringService) GetDevice(ctx context.Context, deviceID string) (models.DeviceStatus, error) {
	if _, ok := s.known[deviceID]; !ok {
		return models.DeviceStatus{}, ErrUnknownDevice
	}
	st, err := s.statusRepo.Get(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return baselineStatus(deviceID), nil
	}
	if err != nil {
		return models.DeviceStatus{}, err
	}
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// baselineStatus is the snapshot of a device that has not reported yet.
func baselineStatus(deviceID string) models.DeviceStatus {
	return models.DeviceStatus{DeviceID: deviceID}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
