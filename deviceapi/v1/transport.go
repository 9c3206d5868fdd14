package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Response struct {
	StatusCode int
	Data       []byte
}

// TokenSource is satisfied by *CredentialCache.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(token string)
}

// Transport handles low-level HTTP and authentication. Every request asks the
// token source for a token right before it is sent; a 401 invalidates that
// token and the request is repeated once with a fresh one.
type Transport struct {
	BaseURL    string
	AuthScheme string
	HTTPClient *http.Client
	Tokens     TokenSource
}

func NewTransport(baseURL string, scheme string, client *http.Client, tokens TokenSource) *Transport {
	if scheme == "" {
		scheme = "JWT"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthScheme: scheme,
		HTTPClient: client,
		Tokens:     tokens,
	}
}

// helper: build full URL with query params
func (t *Transport) buildURL(path string, query url.Values) string {
	u := t.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Get sends a GET request
func (t *Transport) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return t.Do(ctx, http.MethodGet, path, query, nil)
}

// Post sends a POST request with JSON body
func (t *Transport) Post(ctx context.Context, path string, data any) (*Response, error) {
	return t.Do(ctx, http.MethodPost, path, nil, data)
}

func (t *Transport) Do(ctx context.Context, method string, path string, query url.Values, data any) (*Response, error) {
	var body []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = b
	}

	resp, token, err := t.send(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.Tokens.Invalidate(token)
		resp, _, err = t.send(ctx, method, path, query, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &AuthError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("%s %s rejected a fresh token: %s", method, path, string(resp.Data))}
		}
	}

	if resp.StatusCode >= 300 {
		return nil, &RemoteError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Data))}
	}
	return resp, nil
}

func (t *Transport) send(ctx context.Context, method string, path string, query url.Values, body []byte) (*Response, string, error) {
	token, err := t.Tokens.Token(ctx)
	if err != nil {
		return nil, "", err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.buildURL(path, query), reader)
	if err != nil {
		return nil, token, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("%s %s", t.AuthScheme, token))

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, token, &RemoteError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, token, &RemoteError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	return &Response{StatusCode: resp.StatusCode, Data: data}, token, nil
}
