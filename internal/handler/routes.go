package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flist-proxy-go/internal/config"
	"flist-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	api := e.Group("/api")
	api.POST("/login", proxy.Login)
	api.POST("/character-data", proxy.CharacterData)
	api.GET("/image-proxy", proxy.Image)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	// Directories are tried in order; a miss falls through to the router.
	for _, dir := range cfg.Server.StaticDirs {
		e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
			Root:    dir,
			Index:   "index.html",
			Skipper: skipStatic,
		}))
	}
}

// skipStatic keeps the file server away from the API and from writes.
func skipStatic(c echo.Context) bool {
	req := c.Request()
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return true
	}
	return req.URL.Path == "/api" || strings.HasPrefix(req.URL.Path, "/api/")
}
