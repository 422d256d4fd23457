// Package wati delivers replies over the WATI WhatsApp session-message API.
package wati

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"sr-chatbot/internal/infra/resilience"
)

// Credentials is the JSON value stored under {prefix}/wati.
type Credentials struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
}

// CredentialsFunc loads the WATI credentials. It is called until it
// succeeds once.
type CredentialsFunc func(ctx context.Context) (Credentials, error)

// HTTPStatusError captures non-2xx responses from WATI.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("wati: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type sendResult struct {
	Result bool   `json:"result"`
	Info   string `json:"info"`
}

// Client sends session messages to WhatsApp numbers.
type Client struct {
	load       CredentialsFunc
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	logger     *zap.Logger

	mu    sync.Mutex
	creds *Credentials
}

// NewClient returns a Client. httpClient and logger may be nil.
func NewClient(load CredentialsFunc, httpClient *http.Client, retry resilience.Config, logger *zap.Logger) (*Client, error) {
	if load == nil {
		return nil, errors.New("wati: credentials func must not be nil")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		load:       load,
		httpClient: httpClient,
		cb:         resilience.NewCircuitBreaker("wati"),
		retry:      retry,
		logger:     logger,
	}, nil
}

func (c *Client) credentials(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds != nil {
		return *c.creds, nil
	}
	creds, err := c.load(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("wati: load credentials: %w", err)
	}
	creds.Endpoint = strings.TrimRight(strings.TrimSpace(creds.Endpoint), "/")
	creds.Token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(creds.Token), "Bearer "))
	if creds.Endpoint == "" || creds.Token == "" {
		return Credentials{}, errors.New("wati: credentials need both token and endpoint")
	}
	c.creds = &creds
	return creds, nil
}

// normalizeNumber strips the leading plus and whatsapp: prefix senders
// sometimes carry.
func normalizeNumber(n string) string {
	n = strings.TrimSpace(n)
	n = strings.TrimPrefix(n, "whatsapp:")
	return strings.TrimPrefix(n, "+")
}

// Send delivers text to the WhatsApp number to.
func (c *Client) Send(ctx context.Context, to, text string) error {
	number := normalizeNumber(to)
	if number == "" {
		return errors.New("wati: recipient must not be empty")
	}
	creds, err := c.credentials(ctx)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/api/v1/sendSessionMessage/%s?messageText=%s",
		creds.Endpoint, url.PathEscape(number), url.QueryEscape(text))

	err = resilience.Guard(ctx, c.cb, c.retry, func() error {
		err := c.post(ctx, u, creds.Token)
		var se *HTTPStatusError
		if errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("wati: send to %s: %w", number, err)
	}
	c.logger.Debug("wati: message sent", zap.String("to", number), zap.Int("length", len(text)))
	return nil
}

func (c *Client) post(ctx context.Context, u, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("wati: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(body)}
	}

	var out sendResult
	if json.Unmarshal(body, &out) == nil && !out.Result && out.Info != "" {
		return resilience.Permanent(fmt.Errorf("wati: rejected: %s", out.Info))
	}
	return nil
}
