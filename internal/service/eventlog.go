package service

import (
	"context"
	"errors"
	"strings"

	"sensor_alerts/internal/models"
	"sensor_alerts/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidEventType = errors.New("invalid event type")
)

var validEventTypes = map[string]struct{}{
	models.EventWarning:       {},
	models.EventClear:         {},
	models.EventFetchError:    {},
	models.EventDeliveryError: {},
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates them.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	from := toUTC(f.From)
	to := toUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	typ := normalizeEventType(f.Type)
	if _, ok := validEventTypes[typ]; typ != "" && !ok {
		return repository.EventFilter{}, errInvalidEventType
	}

	return repository.EventFilter{
		From:     from,
		To:       to,
		Type:     typ,
		DeviceID: strings.TrimSpace(f.DeviceID),
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.AlertEvent, error) {
	filter, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, filter)
}

// IsValidationError reports whether err comes from filter validation.
func IsValidationError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidEventType)
}
