package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultRefreshMargin = 5 * time.Minute

// Authenticator performs the login call against the device API.
type Authenticator interface {
	Login(ctx context.Context) (token string, err error)
}

// PasswordAuthenticator logs in with a username and password:
// POST {BaseURL}{LoginPath} {"username","password"} -> {"token"}.
type PasswordAuthenticator struct {
	BaseURL    string
	LoginPath  string
	Username   string
	Password   string
	HTTPClient *http.Client
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (a *PasswordAuthenticator) Login(ctx context.Context) (string, error) {
	path := a.LoginPath
	if path == "" {
		path = "/login"
	}

	body, err := json.Marshal(loginRequest{Username: a.Username, Password: a.Password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &RemoteError{Method: http.MethodPost, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", &AuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	case resp.StatusCode >= 300:
		return "", &RemoteError{Method: http.MethodPost, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var parsed loginResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &RemoteError{Method: http.MethodPost, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if parsed.Token == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: "login response carried no token"}
	}
	return parsed.Token, nil
}

// CredentialCache holds the single device API token of the process. Refresh
// is serialised by mu: a caller that waited on a refresh observes the new
// token instead of logging in again.
type CredentialCache struct {
	auth   Authenticator
	margin time.Duration
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type CacheOptions struct {
	// Margin refreshes the token this long before it expires.
	Margin time.Duration
	// TTL is assumed when the token carries no readable exp claim.
	TTL time.Duration
	Now func() time.Time
}

func NewCredentialCache(auth Authenticator, opts CacheOptions) *CredentialCache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Margin < 0 {
		opts.Margin = DefaultRefreshMargin
	}
	return &CredentialCache{auth: auth, margin: opts.Margin, ttl: opts.TTL, now: opts.Now}
}

// Token returns a token valid for at least the refresh margin, logging in
// when the cached one is missing or about to expire.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && c.expiresAt.Add(-c.margin).After(now) {
		return c.token, nil
	}

	token, err := c.auth.Login(ctx)
	if err != nil {
		c.token = ""
		c.expiresAt = time.Time{}
		return "", err
	}

	c.token = token
	c.expiresAt = c.expiryOf(token, now)
	return token, nil
}

// Invalidate forgets token if it is still the cached one. A stale rejection
// never discards a token that was refreshed in the meantime.
func (c *CredentialCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

func (c *CredentialCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// expiryOf reads the exp claim of a JWT without verifying it; the device API
// owns the signing key. Opaque tokens get the configured TTL.
func (c *CredentialCache) expiryOf(token string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(c.ttl)
}
