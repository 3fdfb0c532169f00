package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/observability"
)

// AppConfig holds the transport-level settings for NewApp.
type AppConfig struct {
	Name           string
	RequestTimeout time.Duration
	CORSOrigin     string
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewApp builds the fiber application with middlewares and routes registered.
func NewApp(cfg AppConfig, routes RouteConfig) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(cfg.Logger, cfg.Metrics),
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.RequestTimeout, cfg.CORSOrigin)
	RegisterRoutes(app, routes)
	return app
}
