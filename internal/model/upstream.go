// Package model defines the request schemas and shared types for the proxy.
package model

import (
	"io"
	"net/http"
)

// UpstreamResponse is the raw F-List response relayed back to the browser.
// The caller owns Body and must close it.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// OK reports whether the upstream answered with a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
