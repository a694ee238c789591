package identity

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Account is the remote representation of a registered user. UID is the
// local directory id so both sides share one key.
type Account struct {
	UID         string
	Email       string
	Password    []byte
	DisplayName string
}

// AccountAdmin performs privileged account operations on the provider.
type AccountAdmin interface {
	CreateAccount(ctx context.Context, acct Account) error
	DeleteAccount(ctx context.Context, uid string) error
	AccountExists(ctx context.Context, uid string) (bool, error)
}

var adminScopes = []string{
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/cloud-platform",
}

// seams for tests
var (
	readCredentialsFile = os.ReadFile
	credentialsFromJSON = google.CredentialsFromJSON
)

type AdminConfig struct {
	Endpoint  string
	ProjectID string
	// CredentialsFile is a service-account JSON key. When empty the admin
	// talks to a local emulator, which accepts the fixed "owner" bearer.
	CredentialsFile string
	Timeout         time.Duration
}

// RESTAdmin implements AccountAdmin over the Identity Toolkit v1 REST API.
type RESTAdmin struct {
	base       string
	httpClient *http.Client
	header     http.Header
}

// NewRESTAdmin builds an admin client. With a credentials file the HTTP
// client is wrapped in an OAuth2 service-account token source.
func NewRESTAdmin(ctx context.Context, cfg AdminConfig) (*RESTAdmin, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("identity admin: project id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	a := &RESTAdmin{
		base:   strings.TrimRight(endpoint, "/") + "/v1/projects/" + cfg.ProjectID,
		header: http.Header{},
	}

	if cfg.CredentialsFile == "" {
		a.httpClient = &http.Client{Timeout: timeout}
		a.header.Set("Authorization", "Bearer owner")
		return a, nil
	}

	data, err := readCredentialsFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("identity admin: read credentials: %w", err)
	}
	creds, err := credentialsFromJSON(ctx, data, adminScopes...)
	if err != nil {
		return nil, fmt.Errorf("identity admin: parse credentials: %w", err)
	}

	hc := oauth2.NewClient(ctx, creds.TokenSource)
	hc.Timeout = timeout
	a.httpClient = hc
	return a, nil
}

// NewRESTAdminWithClient is like NewRESTAdmin but uses hc as is.
func NewRESTAdminWithClient(endpoint, projectID string, hc *http.Client) *RESTAdmin {
	return &RESTAdmin{
		base:       strings.TrimRight(endpoint, "/") + "/v1/projects/" + projectID,
		httpClient: hc,
		header:     http.Header{},
	}
}

type createAccountRequest struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

func (a *RESTAdmin) CreateAccount(ctx context.Context, acct Account) error {
	in := createAccountRequest{
		LocalID:     acct.UID,
		Email:       acct.Email,
		Password:    string(acct.Password),
		DisplayName: acct.DisplayName,
	}
	return postJSON(ctx, a.httpClient, a.base+"/accounts", a.header, &in, nil)
}

type deleteAccountRequest struct {
	LocalID string `json:"localId"`
}

func (a *RESTAdmin) DeleteAccount(ctx context.Context, uid string) error {
	return postJSON(ctx, a.httpClient, a.base+"/accounts:delete", a.header, &deleteAccountRequest{LocalID: uid}, nil)
}

type lookupRequest struct {
	LocalID []string `json:"localId"`
}

type lookupResponse struct {
	Users []struct {
		LocalID string `json:"localId"`
	} `json:"users"`
}

func (a *RESTAdmin) AccountExists(ctx context.Context, uid string) (bool, error) {
	var out lookupResponse
	if err := postJSON(ctx, a.httpClient, a.base+"/accounts:lookup", a.header, &lookupRequest{LocalID: []string{uid}}, &out); err != nil {
		return false, err
	}
	for _, u := range out.Users {
		if u.LocalID == uid {
			return true, nil
		}
	}
	return false, nil
}
