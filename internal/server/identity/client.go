// Package identity talks to the remote identity provider: password sign-in
// checks for every login and delete, plus account create and delete through
// an admin collaborator.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// DefaultEndpoint is the production Identity Toolkit host.
const DefaultEndpoint = "https://identitytoolkit.googleapis.com"

type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client checks credentials against the provider and forwards account
// mutations to an AccountAdmin.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	admin      AccountAdmin
}

// NewClient returns a provider client. admin may be nil, in which case
// account mutations fail with a ProviderError.
func NewClient(cfg Config, admin AccountAdmin) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		admin:      admin,
	}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// VerifyCredentials asks the provider whether password is correct for email.
// Any 200 response is success; its body is not read. Otherwise it returns one
// of the credential-failure sentinels from package common, or
// common.ErrUnknownProvider for transport failures and unrecognised errors.
func (c *Client) VerifyCredentials(ctx context.Context, email string, password []byte) error {
	u := c.endpoint + "/v1/accounts:signInWithPassword?key=" + url.QueryEscape(c.apiKey)

	in := signInRequest{Email: email, Password: string(password), ReturnSecureToken: true}

	err := postJSON(ctx, c.httpClient, u, nil, &in, nil)
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) {
		code := ParseErrorCode(se.Message)
		if code == CodeUnknown {
			return fmt.Errorf("%w: %v", common.ErrUnknownProvider, se)
		}
		return code.Err()
	}
	return fmt.Errorf("%w: %v", common.ErrUnknownProvider, err)
}

// CreateAccount creates the remote account for a freshly registered user.
func (c *Client) CreateAccount(ctx context.Context, acct Account) error {
	if c.admin == nil {
		return &ProviderError{Op: OpCreate, Reason: "no account admin configured"}
	}
	if err := c.admin.CreateAccount(ctx, acct); err != nil {
		return &ProviderError{Op: OpCreate, Reason: reasonOf(err), Err: err}
	}
	return nil
}

// DeleteAccount removes the remote account with the given id.
func (c *Client) DeleteAccount(ctx context.Context, uid string) error {
	if c.admin == nil {
		return &ProviderError{Op: OpDelete, Reason: "no account admin configured"}
	}
	if err := c.admin.DeleteAccount(ctx, uid); err != nil {
		return &ProviderError{Op: OpDelete, Reason: reasonOf(err), Err: err}
	}
	return nil
}

// AccountExists reports whether the provider holds an account with id uid.
func (c *Client) AccountExists(ctx context.Context, uid string) (bool, error) {
	if c.admin == nil {
		return false, fmt.Errorf("%w: no account admin configured", common.ErrUnknownProvider)
	}
	ok, err := c.admin.AccountExists(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrUnknownProvider, err)
	}
	return ok, nil
}
