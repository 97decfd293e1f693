package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloudops/internal/config"
	"cloudops/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	apiVersionHeader = "temporal-cloud-api-version"
	defaultPageSize  = 100
	maxErrorBody     = 64 * 1024
)

// Client talks to the control plane JSON gateway. It implements both
// NamespaceService and IdentityService.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	newOpID    func() string
}

var (
	_ NamespaceService = (*Client)(nil)
	_ IdentityService  = (*Client)(nil)
)

func NewClient(cfg config.APIConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Key == "" {
		return nil, errors.New("api key is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}

	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Key,
			TokenType:   "Bearer",
		}),
		Base: &VersionTransport{
			Version: cfg.Version,
			Proxied: http.DefaultTransport,
		},
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger:  logger,
		newOpID: func() string { return uuid.NewString() },
	}, nil
}

// VersionTransport pins the API version on every request.
type VersionTransport struct {
	Version string
	Proxied http.RoundTripper
}

func (v *VersionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if v.Version != "" {
		req = req.Clone(req.Context())
		req.Header.Set(apiVersionHeader, v.Version)
	}
	return v.Proxied.RoundTrip(req)
}

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, op, resource, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	code := "ok"
	defer func() {
		metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		metrics.APIRequestsTotal.WithLabelValues(op, code).Inc()
	}()

	u := *c.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			code = string(CodeUnknown)
			return &Error{Code: CodeUnknown, Op: op, Resource: resource, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		code = string(CodeUnknown)
		return &Error{Code: CodeUnknown, Op: op, Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := transportError(op, resource, err)
		code = string(apiErr.Code)
		return apiErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var gwErr gatewayError
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Message != "" {
			message = gwErr.Message
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		apiErr := &Error{
			Code:     classify(resp.StatusCode, gwErr.Code),
			Op:       op,
			Resource: resource,
			Status:   resp.StatusCode,
			Message:  message,
		}
		code = string(apiErr.Code)
		c.logger.Debug("control plane request failed",
			"op", op, "resource", resource, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		code = string(CodeUnknown)
		return &Error{Code: CodeUnknown, Op: op, Resource: resource, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func pageQuery(pageToken string) url.Values {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(defaultPageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	return q
}
