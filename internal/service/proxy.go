// Package service implements the forwarding logic for the F-List endpoints.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"flist-proxy-go/internal/client"
	"flist-proxy-go/internal/config"
	"flist-proxy-go/internal/metrics"
	"flist-proxy-go/internal/model"
)

// forwardableImageHeaders are the only image response headers relayed to the client.
var forwardableImageHeaders = map[string]bool{
	"Content-Type":   true,
	"Content-Length": true,
	"Cache-Control":  true,
	"Etag":           true,
	"Last-Modified":  true,
}

// ProxyService turns validated browser requests into upstream calls.
type ProxyService struct {
	client   *client.FListClient
	upstream config.UpstreamConfig
	logger   *slog.Logger
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.FListClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client:   c,
		upstream: cfg.Upstream,
		logger:   logger.With("component", "proxy_service"),
	}
}

// RequestTicket forwards credentials to the ticket endpoint.
// The caller is responsible for closing the response body.
func (s *ProxyService) RequestTicket(ctx context.Context, req *model.TicketRequest) (*model.UpstreamResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("requesting ticket", "account", req.Account)

	resp, err := s.client.PostForm(ctx, metrics.EndpointTicket, s.upstream.TicketURL, req.Form())
	if err != nil {
		return nil, fmt.Errorf("request ticket: %w", err)
	}
	return resp, nil
}

// FetchCharacterData forwards an account/ticket/name triple to the character-data endpoint.
// The caller is responsible for closing the response body.
func (s *ProxyService) FetchCharacterData(ctx context.Context, req *model.CharacterDataRequest) (*model.UpstreamResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("fetching character data", "account", req.Account, "name", req.Name)

	resp, err := s.client.PostForm(ctx, metrics.EndpointCharacterData, s.upstream.CharacterDataURL, req.Form())
	if err != nil {
		return nil, fmt.Errorf("fetch character data: %w", err)
	}
	return resp, nil
}

// FetchImage requests a character image. The body is left unread for streaming
// and only allowlisted headers are kept. The caller closes the body.
func (s *ProxyService) FetchImage(ctx context.Context, req *model.ImageRequest) (*model.UpstreamResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	target := s.imageURL(req)
	s.logger.Debug("fetching image", "file", req.File)

	resp, err := s.client.Get(ctx, metrics.EndpointImage, target)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	resp.Header = filterImageHeaders(resp.Header)
	return resp, nil
}

// imageURL joins the configured base (which ends in '/') and the escaped file name.
func (s *ProxyService) imageURL(req *model.ImageRequest) string {
	return s.upstream.ImageBaseURL + req.PathSegment()
}

func filterImageHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableImageHeaders[http.CanonicalHeaderKey(key)] {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}
