// Package google talks to the Sheets v4 and Drive v3 REST APIs with a
// service-account identity. It reads the statement source tables and
// renders statement documents from a spreadsheet template.
package google

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

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	oauthScopes     = "https://www.googleapis.com/auth/spreadsheets https://www.googleapis.com/auth/drive"
	assertionTTL    = time.Hour
	// tokens are refreshed this long before Google says they expire
	expiryLeeway = 60 * time.Second
)

// ServiceAccount is the subset of a Google service-account key file used
// to mint access tokens.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// CredentialsFunc loads the service account, typically from the parameter
// store. It is called until it succeeds once.
type CredentialsFunc func(ctx context.Context) (ServiceAccount, error)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource exchanges a signed JWT assertion for an OAuth access token
// and caches it until shortly before expiry. Concurrent refreshes share a
// single exchange.
type TokenSource struct {
	load       CredentialsFunc
	httpClient *http.Client
	now        func() time.Time
	group      singleflight.Group

	mu      sync.Mutex
	account *ServiceAccount
	token   string
	expiry  time.Time
}

// NewTokenSource returns a TokenSource. httpClient may be nil.
func NewTokenSource(load CredentialsFunc, httpClient *http.Client) (*TokenSource, error) {
	if load == nil {
		return nil, errors.New("google: credentials func must not be nil")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenSource{load: load, httpClient: httpClient, now: time.Now}, nil
}

// Token returns a valid access token.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.token != "" && ts.now().Before(ts.expiry.Add(-expiryLeeway)) {
		tok := ts.token
		ts.mu.Unlock()
		return tok, nil
	}
	ts.mu.Unlock()

	v, err, _ := ts.group.Do("token", func() (any, error) {
		return ts.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (ts *TokenSource) credentials(ctx context.Context) (ServiceAccount, error) {
	ts.mu.Lock()
	if ts.account != nil {
		sa := *ts.account
		ts.mu.Unlock()
		return sa, nil
	}
	ts.mu.Unlock()

	sa, err := ts.load(ctx)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("google: load service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return ServiceAccount{}, errors.New("google: service account is missing client_email or private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	ts.mu.Lock()
	ts.account = &sa
	ts.mu.Unlock()
	return sa, nil
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	sa, err := ts.credentials(ctx)
	if err != nil {
		return "", err
	}
	assertion, err := signAssertion(sa, ts.now())
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("google: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google: token request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if res.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: sa.TokenURI, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("google: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("google: token response has no access_token")
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = int64(assertionTTL / time.Second)
	}

	ts.mu.Lock()
	ts.token = tr.AccessToken
	ts.expiry = ts.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	ts.mu.Unlock()
	return tr.AccessToken, nil
}

// signAssertion builds the RS256 JWT bearer assertion for the token endpoint.
func signAssertion(sa ServiceAccount, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("google: parse private key: %w", err)
	}
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": oauthScopes,
		"aud":   sa.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if sa.PrivateKeyID != "" {
		tok.Header["kid"] = sa.PrivateKeyID
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("google: sign assertion: %w", err)
	}
	return signed, nil
}
