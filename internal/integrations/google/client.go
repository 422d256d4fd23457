package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"sr-chatbot/internal/infra/resilience"
)

var tracer = otel.Tracer("google")

const (
	defaultSheetsBase = "https://sheets.googleapis.com/v4"
	defaultDriveBase  = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"
	defaultExportBase = "https://docs.google.com/spreadsheets/d"
	maxResponseBytes  = 32 << 20
)

// HTTPStatusError captures non-2xx responses from Google.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("google: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func isStatus(err error, code int) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// tokenProvider is satisfied by *TokenSource.
type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client implements statement.TabularReader and statement.DocumentRenderer.
type Client struct {
	httpClient *http.Client
	tokens     tokenProvider
	folderID   string
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	logger     *zap.Logger

	sheetsBase string
	driveBase  string
	uploadBase string
	exportBase string
}

type Option func(*Client)

// WithHTTPClient overrides the default 30s-timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs points every API family at base, used by tests.
func WithBaseURLs(base string) Option {
	return func(c *Client) {
		base = strings.TrimRight(base, "/")
		c.sheetsBase = base + "/sheets"
		c.driveBase = base + "/drive"
		c.uploadBase = base + "/upload"
		c.exportBase = base + "/export"
	}
}

// WithCircuitBreaker shares a breaker between clients.
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.cb = cb }
}

// NewClient returns a Client. folderID is the Drive folder that receives
// working copies and exported documents; it may be empty.
func NewClient(tokens tokenProvider, folderID string, retry resilience.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("google: token provider must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		folderID:   strings.TrimSpace(folderID),
		retry:      retry,
		logger:     logger,
		sheetsBase: defaultSheetsBase,
		driveBase:  defaultDriveBase,
		uploadBase: defaultUploadBase,
		exportBase: defaultExportBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cb == nil {
		c.cb = resilience.NewCircuitBreaker("google")
	}
	return c, nil
}

type request struct {
	method      string
	url         string
	body        []byte
	contentType string
}

// do sends r through the breaker with retries. 429 and 5xx are retried;
// any other non-2xx status is returned at once.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	var out []byte
	err := resilience.Guard(ctx, c.cb, c.retry, func() error {
		var err error
		out, err = c.once(ctx, r)
		var se *HTTPStatusError
		if errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(err)
		}
		return err
	})
	return out, err
}

func (c *Client) once(ctx context.Context, r request) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("google: request failed",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err),
		)
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		c.logger.Warn("google: non-2xx response",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Int("status", res.StatusCode),
		)
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: r.url, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("google: read response body: %w", err)
	}
	return buf, nil
}
