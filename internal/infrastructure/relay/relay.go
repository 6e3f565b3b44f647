// Package relay runs the local forwarder that fronts the ad platform for
// browser sessions. It rewrites /api/proxy/* onto the upstream host and
// strips the frame-busting headers from responses.
package relay

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
)

const proxyPrefix = "/api/proxy"

// Config carries the listen port and the upstream origin.
type Config struct {
	Port   int
	Target string
}

// Server is the relay HTTP server.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger
}

// New builds the relay around a configured fiber app.
func New(cfg Config, logger *slog.Logger) *Server {
	cfg.Target = strings.TrimSuffix(cfg.Target, "/")

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{cfg: cfg, app: app, logger: logger}

	app.Get("/health", s.handleHealth)
	app.All(proxyPrefix+"/*", s.handleProxy)

	return s
}

// Run blocks serving until the listener fails or the app is shut down.
func (s *Server) Run() error {
	s.logger.Info("relay listening", "port", s.cfg.Port, "target", s.cfg.Target)
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Port))
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"target": s.cfg.Target,
		"port":   s.cfg.Port,
	})
}

func (s *Server) handleProxy(c *fiber.Ctx) error {
	upstream := s.cfg.Target + strings.TrimPrefix(c.Path(), proxyPrefix)
	if query := string(c.Request().URI().QueryString()); query != "" {
		upstream += "?" + query
	}

	// Cookie and User-Agent arrive from the caller and pass through as-is.
	c.Request().Header.Del(fiber.HeaderAcceptEncoding)

	if err := proxy.Do(c, upstream); err != nil {
		s.logger.Error("relay request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "upstream request failed",
		})
	}

	c.Response().Header.Del(fiber.HeaderXFrameOptions)
	c.Response().Header.Del(fiber.HeaderContentSecurityPolicy)

	s.logger.Info("relay request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"bytes", len(c.Response().Body()))
	return nil
}
