// Package api is the HTTP client for the crawl backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"crawldash/internal/domain"
)

// RequestIDHeader is set on every request for correlation with backend logs.
const RequestIDHeader = "X-Request-ID"

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client talks to the backend's /api/urls endpoints.
type Client struct {
	baseURL    *url.URL
	creds      Credentials
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient validates baseURL and returns a client. A zero timeout means DefaultTimeout.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger logrus.FieldLogger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("api base %q must be an absolute http(s) URL", baseURL)
	}
	if creds == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    u,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.WithField("component", "api_client"),
	}, nil
}

type listResponse struct {
	URLs []domain.URLRecord `json:"urls"`
}

// ListURLs fetches one snapshot. The snapshot is validated before it is returned.
func (c *Client) ListURLs(ctx context.Context) ([]domain.URLRecord, error) {
	const op = "list urls"
	var out listResponse
	if err := c.do(ctx, op, http.MethodGet, "/api/urls", nil, &out); err != nil {
		return nil, err
	}
	if out.URLs == nil {
		out.URLs = []domain.URLRecord{}
	}
	if err := domain.ValidateSnapshot(out.URLs); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return out.URLs, nil
}

// AddURL submits a new URL for crawling. Input is trimmed first.
func (c *Client) AddURL(ctx context.Context, rawURL string) error {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return ErrEmptyURL
	}
	body := map[string]string{"url": target}
	return c.do(ctx, "add url", http.MethodPost, "/api/urls", body, nil)
}

// StartURL starts (or re-queues) the crawl for id.
func (c *Client) StartURL(ctx context.Context, id int64) error {
	return c.do(ctx, "start url", http.MethodPost, "/api/urls/"+strconv.FormatInt(id, 10)+"/start", nil, nil)
}

// DeleteURL removes id.
func (c *Client) DeleteURL(ctx context.Context, id int64) error {
	return c.do(ctx, "delete url", http.MethodDelete, "/api/urls/"+strconv.FormatInt(id, 10)+"/delete", nil, nil)
}

// URLStatus fetches the status and latest crawl results for id.
func (c *Client) URLStatus(ctx context.Context, id int64) (*domain.URLStatus, error) {
	const op = "url status"
	var out domain.URLStatus
	if err := c.do(ctx, op, http.MethodGet, "/api/urls/"+strconv.FormatInt(id, 10)+"/status", nil, &out); err != nil {
		return nil, err
	}
	if !out.Status.Valid() {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("unknown status %q", out.Status)}
	}
	return &out, nil
}

// do performs one request. A nil out discards the response body on success.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		bodyReader = bytes.NewReader(body)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	token, err := c.creds.BearerToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(logrus.Fields{
		"op":         op,
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("Request failed")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Op: op, Code: resp.StatusCode, Body: string(respBody)}
		var errorResp struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(respBody, &errorResp); jsonErr == nil {
			se.Message = errorResp.Error
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}
