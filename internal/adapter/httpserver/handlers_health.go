package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/jamscore/internal/platform/version"
)

// HealthCheck verifies one backend, for example a postgres ping.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type livenessResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

type checkResponse struct {
	Status      string            `json:"status"`
	FailedCheck string            `json:"failed_check,omitempty"`
	Error       string            `json:"error,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.checks(2*time.Second))
	s.echo.GET("/health/ready", s.checks(5*time.Second))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/version", s.handleVersion)
	if s.opts.MetricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.opts.MetricsHandler))
	}
}

func (s *Server) handleLiveness(c echo.Context) error {
	resp := livenessResponse{Status: "ok", Uptime: s.clock.Since(s.startTime).Seconds()}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// checks runs every health check within timeout. The first failure decides
// the reported error; the per-check map lists them all.
func (s *Server) checks(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		resp := checkResponse{Status: "ready"}
		code := http.StatusOK
		if len(s.healthChecks) > 0 {
			resp.Checks = make(map[string]string, len(s.healthChecks))
		}

		for _, hc := range s.healthChecks {
			if err := hc.Check(ctx); err != nil {
				slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
				resp.Checks[hc.Name] = "failing"
				if code == http.StatusOK {
					code = http.StatusServiceUnavailable
					resp.Status = "unhealthy"
					resp.FailedCheck = hc.Name
					resp.Error = err.Error()
				}
				continue
			}
			resp.Checks[hc.Name] = "ok"
		}

		if err := c.JSON(code, resp); err != nil {
			return fmt.Errorf("failed to write health response: %w", err)
		}
		return nil
	}
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
