package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"flist-proxy-go/internal/metrics"
	"flist-proxy-go/internal/model"
)

// copyBufferSize bounds how much of an image is held in memory at once.
const copyBufferSize = 32 * 1024

// Image streams a character image from the F-List static host.
func (h *ProxyHandler) Image(c echo.Context) error {
	req := &model.ImageRequest{File: c.QueryParam("imageFile")}
	h.logger.Info("proxying image", "file", req.File)

	if req.File == "" {
		return c.String(http.StatusBadRequest, msgNoImageFile)
	}

	resp, err := h.service.FetchImage(c.Request().Context(), req)
	if err != nil {
		return h.mapError(c, err, metrics.EndpointImage, msgProxyError)
	}
	defer func() { _ = resp.Body.Close() }()

	if !resp.OK() {
		h.logger.Info("upstream image fetch failed",
			"file", req.File,
			"status", resp.StatusCode,
		)
		return c.String(resp.StatusCode, msgImageNotFound)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)

	// Headers are already sent, so a copy failure (client disconnect,
	// upstream reset) can only truncate the body. Log it and move on.
	n, err := io.CopyBuffer(flushWriter{c.Response()}, resp.Body, make([]byte, copyBufferSize))
	if h.metrics != nil {
		h.metrics.ImageBytes.Add(float64(n))
	}
	if err != nil {
		h.logger.Error("streaming image body",
			"err", err,
			"file", req.File,
			"bytes", n,
		)
	}
	return nil
}

// flushWriter pushes every chunk to the client as soon as it is written,
// so the first bytes leave before the upstream body is complete.
type flushWriter struct {
	res *echo.Response
}

func (w flushWriter) Write(p []byte) (int, error) {
	n, err := w.res.Write(p)
	if err == nil {
		w.res.Flush()
	}
	return n, err
}
