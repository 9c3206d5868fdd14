package v1

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAuth struct {
	calls  atomic.Int32
	delay  time.Duration
	tokens []string
	err    error
}

func (a *countingAuth) Login(ctx context.Context) (string, error) {
	n := a.calls.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.err != nil {
		return "", a.err
	}
	i := int(n) - 1
	if i >= len(a.tokens) {
		i = len(a.tokens) - 1
	}
	return a.tokens[i], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCredentialCacheSingleLoginForConcurrentCallers(t *testing.T) {
	auth := &countingAuth{delay: 50 * time.Millisecond, tokens: []string{"t1", "t2"}}
	cache := NewCredentialCache(auth, CacheOptions{Margin: time.Minute, TTL: time.Hour})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Token(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), auth.calls.Load())
	for _, tok := range results {
		assert.Equal(t, "t1", tok)
	}
}

func TestCredentialCacheRefreshesInsideMargin(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	auth := &countingAuth{tokens: []string{"t1", "t2"}}
	cache := NewCredentialCache(auth, CacheOptions{Margin: 5 * time.Minute, TTL: time.Hour, Now: clock.Now})

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", tok)

	clock.Advance(54 * time.Minute)
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", tok)

	clock.Advance(2 * time.Minute)
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestCredentialCacheReadsJWTExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	exp := clock.now.Add(10 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("device-secret"))
	require.NoError(t, err)

	cache := NewCredentialCache(&countingAuth{tokens: []string{signed}}, CacheOptions{Margin: 5 * time.Minute, TTL: time.Hour, Now: clock.Now})
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, exp.Equal(cache.ExpiresAt()))
}

func TestCredentialCacheInvalidateIgnoresStaleToken(t *testing.T) {
	auth := &countingAuth{tokens: []string{"t1", "t2"}}
	cache := NewCredentialCache(auth, CacheOptions{TTL: time.Hour})

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	cache.Invalidate("t1")
	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)

	cache.Invalidate("t1")
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestCredentialCacheLoginFailure(t *testing.T) {
	auth := &countingAuth{err: &AuthError{StatusCode: http.StatusUnauthorized, Message: "bad password"}}
	cache := NewCredentialCache(auth, CacheOptions{})

	_, err := cache.Token(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestPasswordAuthenticator(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		token   string
		wantErr any
	}{
		{name: "ok", status: http.StatusOK, body: `{"token":"abc"}`, token: "abc"},
		{name: "rejected", status: http.StatusBadRequest, body: `{"non_field_errors":["Unable to log in"]}`, wantErr: &AuthError{}},
		{name: "no token", status: http.StatusOK, body: `{}`, wantErr: &AuthError{}},
		{name: "server error", status: http.StatusBadGateway, body: `upstream`, wantErr: &RemoteError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/login", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			auth := &PasswordAuthenticator{BaseURL: srv.URL, Username: "admin", Password: "secret"}
			tok, err := auth.Login(context.Background())
			switch want := tt.wantErr.(type) {
			case nil:
				require.NoError(t, err)
				assert.Equal(t, tt.token, tok)
			case *AuthError:
				assert.True(t, errors.As(err, &want))
			case *RemoteError:
				require.True(t, errors.As(err, &want))
				assert.Equal(t, tt.status, want.StatusCode)
			}
		})
	}
}
