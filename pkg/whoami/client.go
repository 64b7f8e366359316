package whoami

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const Path = "/api/auth/whoami/"

// ErrUnauthorized is returned for 401 and 403 responses; the token needs to
// be replaced.
var ErrUnauthorized = errors.New("whoami: unauthorized")

// StatusError is any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("whoami: unexpected status %d: %s", e.StatusCode, e.Body)
}

type ClientOption func(*retryablehttp.Client)

func WithRetryMax(n int) ClientOption {
	return func(c *retryablehttp.Client) { c.RetryMax = n }
}

func WithRetryWait(min, max time.Duration) ClientOption {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = min
		c.RetryWaitMax = max
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *retryablehttp.Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// Client calls the who-am-i endpoint, retrying connection errors and 5xx
// responses.
type Client struct {
	apiHost string
	http    *retryablehttp.Client
}

func NewClient(apiHost string, opts ...ClientOption) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{logger: log.With().Str("component", "whoami").Logger()}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{apiHost: strings.TrimRight(apiHost, "/"), http: rc}
}

func (c *Client) Fetch(ctx context.Context, token string) (*Response, error) {
	if c.apiHost == "" {
		return nil, errors.New("whoami: api host is empty")
	}
	if token == "" {
		return nil, errors.Wrap(ErrUnauthorized, "no access token")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.apiHost+Path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "whoami: build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "whoami: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(ErrUnauthorized, "status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "whoami: decode response")
	}
	log.Debug().Str("component", "whoami").Int("profiles", len(out.Profiles)).Msg("fetched profiles")
	return &out, nil
}

// leveledLogger routes retryablehttp logs to zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.logger.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.logger.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug().Fields(kv).Msg(msg) }
