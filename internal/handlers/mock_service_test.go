package handlers

import (
	"context"
	"net/http"
	"time"

	"sensor_alerts/internal/models"
	"sensor_alerts/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMonitoring struct {
	devices []models.DeviceStatus
	device  models.DeviceStatus
	err     error
	getErr  error
	lastID  string
}

func (m *mockMonitoring) ListDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	return m.devices, m.err
}

func (m *mockMonitoring) GetDevice(ctx context.Context, id string) (models.DeviceStatus, error) {
	m.lastID = id
	return m.device, m.getErr
}

type mockEventLog struct {
	resp       []models.AlertEvent
	err        error
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
	lastDevice string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.AlertEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastDevice = f.DeviceID
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

const testToken = "valid"

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, testToken)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func newAuthedRequest(method, target string) *http.Request {
	req, _ := http.NewRequest(method, target, nil)
	for k, vv := range authHeader(testToken) {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
