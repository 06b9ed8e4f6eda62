package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"flist-proxy-go/internal/codec"
	"flist-proxy-go/internal/config"
	"flist-proxy-go/internal/metrics"
	"flist-proxy-go/internal/model"
	"flist-proxy-go/internal/reporting"
	"flist-proxy-go/internal/service"
)

// Fixed client-facing messages. Error details stay in the server log.
const (
	msgInvalidBody   = "Invalid request body."
	msgProxyFailed   = "Proxy request failed"
	msgProxyError    = "Proxy error"
	msgNoImageFile   = "No image file provided."
	msgInvalidImage  = "Invalid image file."
	msgImageNotFound = "Failed to fetch image"
)

// errUpstreamTooLarge is returned when a JSON body exceeds upstream.max_json_bytes.
var errUpstreamTooLarge = errors.New("upstream response exceeds max_json_bytes")

// errUpstreamNotJSON is returned when a 2xx upstream body is not valid JSON.
var errUpstreamNotJSON = errors.New("upstream response is not valid JSON")

// defaultMaxJSONBytes applies when the config leaves upstream.max_json_bytes unset.
const defaultMaxJSONBytes = 10 * 1024 * 1024

// ProxyHandler serves the /api routes by forwarding them to F-List.
type ProxyHandler struct {
	service      *service.ProxyService
	reporter     *reporting.Reporter
	metrics      *metrics.Metrics
	logger       *slog.Logger
	maxJSONBytes int64
}

// NewProxyHandler creates a ProxyHandler. reporter and m may be nil.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, reporter *reporting.Reporter, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	maxJSON := cfg.Upstream.MaxJSONBytes
	if maxJSON <= 0 {
		maxJSON = defaultMaxJSONBytes
	}
	return &ProxyHandler{
		service:      svc,
		reporter:     reporter,
		metrics:      m,
		logger:       logger.With("component", "proxy_handler"),
		maxJSONBytes: maxJSON,
	}
}

// Login exchanges account credentials for an API ticket.
func (h *ProxyHandler) Login(c echo.Context) error {
	var req model.TicketRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, msgInvalidBody)
	}

	resp, err := h.service.RequestTicket(c.Request().Context(), &req)
	if err != nil {
		return h.mapError(c, err, metrics.EndpointTicket, msgProxyFailed)
	}
	defer func() { _ = resp.Body.Close() }()

	return h.relayJSON(c, resp, metrics.EndpointTicket)
}

// CharacterData fetches a character profile using a previously issued ticket.
func (h *ProxyHandler) CharacterData(c echo.Context) error {
	var req model.CharacterDataRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, msgInvalidBody)
	}

	resp, err := h.service.FetchCharacterData(c.Request().Context(), &req)
	if err != nil {
		return h.mapError(c, err, metrics.EndpointCharacterData, msgProxyFailed)
	}
	defer func() { _ = resp.Body.Close() }()

	return h.relayJSON(c, resp, metrics.EndpointCharacterData)
}

// relayJSON answers with the upstream body. A non-2xx status and its body are
// passed through untouched, whatever their size; a 2xx body must be valid
// JSON no larger than max_json_bytes.
func (h *ProxyHandler) relayJSON(c echo.Context, resp *model.UpstreamResponse, endpoint string) error {
	if !resp.OK() {
		h.logger.Info("relaying upstream error",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		contentType := resp.Header.Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = echo.MIMETextPlainCharsetUTF8
		}
		return c.Stream(resp.StatusCode, contentType, resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxJSONBytes+1))
	if err != nil {
		return h.mapError(c, fmt.Errorf("read upstream body: %w", err), endpoint, msgProxyFailed)
	}
	if int64(len(body)) > h.maxJSONBytes {
		return h.mapError(c, errUpstreamTooLarge, endpoint, msgProxyFailed)
	}

	if !codec.Valid(body) {
		return h.mapError(c, errUpstreamNotJSON, endpoint, msgProxyFailed)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, body)
}

// mapError turns a service error into a plain-text response. Input errors are
// the client's fault; everything else is a generic 500.
func (h *ProxyHandler) mapError(c echo.Context, err error, endpoint, failure string) error {
	path := c.Request().URL.Path

	if errors.Is(err, model.ErrMissingField) {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, model.ErrInvalidFileName) {
		return c.String(http.StatusBadRequest, msgInvalidImage)
	}

	if errors.Is(err, context.Canceled) {
		h.logger.Info("client went away before upstream answered",
			"endpoint", endpoint,
			"path", path,
		)
		return c.String(http.StatusInternalServerError, failure)
	}

	h.logger.Error("proxy error",
		"err", err,
		"endpoint", endpoint,
		"path", path,
	)
	h.reporter.Capture(err, map[string]string{
		"endpoint":   endpoint,
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	})
	return c.String(http.StatusInternalServerError, failure)
}
