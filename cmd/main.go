package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensor_alerts/internal/alert"
	"sensor_alerts/internal/config"
	"sensor_alerts/internal/handlers"
	"sensor_alerts/internal/logger"
	"sensor_alerts/internal/models"
	"sensor_alerts/internal/notifier"
	"sensor_alerts/internal/poller"
	"sensor_alerts/internal/registry"
	"sensor_alerts/internal/repository"
	"sensor_alerts/internal/repository/db"
	"sensor_alerts/internal/sensor"
	"sensor_alerts/internal/server"
	"sensor_alerts/internal/service"

	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

// @title                       Sensor Alerts API
// @version                     1.0
// @description                 Read-only status API of the sensor alert poller.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Static API token as "Bearer <token>".
func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default configs/config.yml)")
	pflag.Parse()

	// init logger
	log := logger.Get(logger.InfoLevel)

	// load configs/config.yml + SENSOR_ALERTS_* overrides
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("error reading config", "err", err)
	}
	log.SetLevel(cfg.Log.Level)

	devices, err := registry.LoadDevices(cfg.Files.Devices)
	if err != nil {
		log.Fatalw("error loading device registry", "err", err)
	}
	if len(devices) == 0 {
		log.Infow("device registry is empty; nothing will be polled", "path", cfg.Files.Devices)
	}
	recipients, err := registry.LoadRecipients(cfg.Files.Recipients)
	if err != nil {
		log.Fatalw("error loading recipients", "err", err)
	}

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(sqlDB)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport, err := notifier.NewSMTPTransport(ctx, notifier.SMTPConfig{
		Host:         cfg.Mail.Host,
		Port:         cfg.Mail.Port,
		Username:     cfg.Mail.Username,
		ClientID:     cfg.Mail.OAuth.ClientID,
		ClientSecret: cfg.Mail.OAuth.ClientSecret,
		RefreshToken: cfg.Mail.OAuth.RefreshToken,
		TokenURL:     cfg.Mail.OAuth.TokenURL,
	})
	if err != nil {
		log.Fatalw("failed to init mail transport", "err", err)
	}
	mailer := notifier.NewMailer(transport, cfg.Mail.Sender, recipients, cfg.Alert.Threshold, cfg.Display.Location)

	client := sensor.New(sensor.Config{
		Scheme:  cfg.Sensor.Scheme,
		Host:    cfg.Sensor.Host,
		Timeout: cfg.Sensor.Timeout,
	}, nil)

	controller := alert.NewController(alert.Config{
		Threshold:      cfg.Alert.Threshold,
		WarningTimeout: cfg.Alert.WarningTimeout,
	}, mailer, repos.EventRepo, log)

	loop := poller.New(devices, client, controller, cfg.Poll.Interval, log,
		poller.WithStatus(repos.StatusRepo),
		poller.WithEvents(repos.EventRepo),
		poller.WithLocation(cfg.Display.Location),
	)

	log.Infow("starting poller",
		"devices", len(devices),
		"recipients", len(recipients),
		"interval", cfg.Poll.Interval,
		"threshold", cfg.Alert.Threshold,
		"warning_timeout", cfg.Alert.WarningTimeout,
	)
	go loop.Run(ctx)

	var srv *server.Server
	if cfg.HTTP.Enabled {
		services := service.NewService(repos, deviceIDs(devices))
		apiHandler := handlers.NewHandler(services, log, cfg.HTTP.APIToken)
		srv = server.New(cfg.HTTP.Port, apiHandler.InitRoutes())
		runHTTPServer(srv, log)
	}

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func deviceIDs(devices []*models.Device) []string {
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("status api listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop the poll loop
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
