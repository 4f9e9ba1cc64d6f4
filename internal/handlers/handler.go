package handlers

import (
	_ "sensor_alerts/docs" // registers the swagger spec served at /swagger/doc.json
	"sensor_alerts/internal/logger"
	"sensor_alerts/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	apiToken string
}

// NewHandler constructs a new HTTP handler. An empty apiToken disables auth.
func NewHandler(services *service.Service, log *logger.Logger, apiToken string) *Handler {
	return &Handler{services: services, log: log, apiToken: apiToken}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Device status stream, same port
	router.GET("/ws", h.tokenMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.tokenMiddleware)
	{
		h.registerDeviceRoutes(api)
		h.registerEventRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:id", h.getDevice)
	}
}

func (h *Handler) registerEventRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.getEvents)
}
