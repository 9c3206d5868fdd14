package v1

import (
	"net/http"
	"strings"
	"time"
)

const DefaultPageSize = 50

type Options struct {
	BaseURL    string
	Username   string
	Password   string
	AuthScheme string
	LoginPath  string
	Timeout    time.Duration

	RefreshMargin time.Duration
	TokenTTL      time.Duration
	Now           func() time.Time

	// Location is the device timezone used for punch times.
	Location *time.Location
	PageSize int
}

// DeviceClient is the single entry point to the device API. The credential
// cache is shared by every endpoint so the process holds one token.
type DeviceClient struct {
	Transport    *Transport
	Credentials  *CredentialCache
	Employees    *EmployeeEndpoint
	Transactions *TransactionEndpoint
	Terminals    *TerminalEndpoint
}

func NewDeviceClient(opts Options) *DeviceClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	httpClient := &http.Client{Timeout: opts.Timeout}
	auth := &PasswordAuthenticator{
		BaseURL:    opts.BaseURL,
		LoginPath:  opts.LoginPath,
		Username:   opts.Username,
		Password:   opts.Password,
		HTTPClient: httpClient,
	}
	creds := NewCredentialCache(auth, CacheOptions{Margin: opts.RefreshMargin, TTL: opts.TokenTTL, Now: opts.Now})
	return newDeviceClient(NewTransport(opts.BaseURL, opts.AuthScheme, httpClient, creds), creds, opts.Location, opts.PageSize)
}

func newDeviceClient(t *Transport, creds *CredentialCache, loc *time.Location, pageSize int) *DeviceClient {
	return &DeviceClient{
		Transport:    t,
		Credentials:  creds,
		Employees:    &EmployeeEndpoint{transport: t, pageSize: pageSize},
		Transactions: &TransactionEndpoint{transport: t, location: loc, pageSize: pageSize},
		Terminals:    &TerminalEndpoint{transport: t, location: loc, pageSize: pageSize},
	}
}
