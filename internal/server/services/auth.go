// Package services contains server-side business logic. AuthService runs
// the register, login and delete flows over the local directory, the
// identity provider and the token issuer.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

type PasswordHasher interface {
	Hash(password []byte) (string, error)
}

type TokenIssuer interface {
	Sign(payload auth.Payload, ttl time.Duration) (auth.Token, error)
	Verify(token string) (auth.Payload, error)
	Decode(token string) (auth.Payload, error)
	Now() time.Time
}

// IdentityProvider is the remote side of every flow.
type IdentityProvider interface {
	VerifyCredentials(ctx context.Context, email string, password []byte) error
	CreateAccount(ctx context.Context, acct identity.Account) error
	DeleteAccount(ctx context.Context, uid string) error
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type LoginResult struct {
	User   *models.User
	Tokens TokenPair
}

// Principal identifies the caller of an authenticated request.
type Principal struct {
	UserID string
	Email  string
}

// RegistrationRequest carries the plaintext password. The service does not
// wipe it; that is up to the caller once Register returns.
type RegistrationRequest struct {
	Email     string
	Password  []byte
	FirstName string
	LastName  string
}

// RegistrationError means the local record was stored but the remote
// account was not created. The local record is left in place; see
// ReconcileService for cleanup.
type RegistrationError struct {
	User *models.User
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("user %s stored locally, remote account not created: %v", e.User.ID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// DeletionError means the local record was removed but the remote account
// still exists.
type DeletionError struct {
	User *models.User
	Err  error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("user %s deleted locally, remote account not deleted: %v", e.User.ID, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	issuer      TokenIssuer
	provider    IdentityProvider
	log         logging.Logger

	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, issuer TokenIssuer,
	provider IdentityProvider, cfg *config.Config, log logging.Logger) *AuthService {

	access := cfg.AccessTokenValidityDuration
	if access <= 0 {
		access = config.DefaultAccessTokenValidity
	}
	refresh := cfg.RefreshTokenValidityDuration
	if refresh <= 0 {
		refresh = config.DefaultRefreshTokenValidity
	}
	if log == nil {
		log = logging.NopLogger{}
	}

	return &AuthService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		issuer:                       issuer,
		provider:                     provider,
		log:                          log,
		accessTokenValidityDuration:  access,
		refreshTokenValidityDuration: refresh,
	}
}

// AccessExpiry is the expiry of an access token issued at now.
func (s *AuthService) AccessExpiry(now time.Time) time.Time {
	return now.Add(s.accessTokenValidityDuration)
}

// RefreshExpiry is the expiry of a refresh token issued at now.
func (s *AuthService) RefreshExpiry(now time.Time) time.Time {
	return now.Add(s.refreshTokenValidityDuration)
}

// Register hashes the password, stores the local record and then creates
// the remote account under the same id. The steps are not atomic: when the
// remote call fails the local record stays and a *RegistrationError is
// returned.
func (s *AuthService) Register(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	email := common.NormalizeEmail(req.Email)
	if err := validateRegistration(email, req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	err = s.provider.CreateAccount(ctx, identity.Account{
		UID:         user.ID,
		Email:       user.Email,
		Password:    req.Password,
		DisplayName: user.DisplayName(),
	})
	if err != nil {
		s.log.Warn(ctx, "remote account not created, local record kept", "user_id", user.ID, "error", err)
		return nil, &RegistrationError{User: user, Err: err}
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials with the provider, loads the local record
// and issues an access/refresh token pair.
func (s *AuthService) Login(ctx context.Context, email string, password []byte) (*LoginResult, error) {
	email = common.NormalizeEmail(email)

	if err := s.provider.VerifyCredentials(ctx, email, password); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "provider accepted credentials for unknown local user", "email", email)
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Tokens: *pair}, nil
}

// Delete re-verifies password, removes the local record and then the remote
// account. A wrong password leaves both untouched. A remote failure after
// the local delete is reported as *DeletionError.
func (s *AuthService) Delete(ctx context.Context, user *models.User, password []byte) error {
	if err := s.provider.VerifyCredentials(ctx, user.Email, password); err != nil {
		return err
	}

	if err := s.repomanager.Users(s.db).Delete(ctx, user); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		return fmt.Errorf("error deleting user: %w", err)
	}

	if err := s.provider.DeleteAccount(ctx, user.ID); err != nil {
		s.log.Warn(ctx, "remote account not deleted, local record gone", "user_id", user.ID, "error", err)
		return &DeletionError{User: user, Err: err}
	}

	s.log.Info(ctx, "user deleted", "user_id", user.ID)
	return nil
}

// DeleteByID loads the user with id and runs Delete.
func (s *AuthService) DeleteByID(ctx context.Context, userID string, password []byte) error {
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		return fmt.Errorf("error loading user: %w", err)
	}
	return s.Delete(ctx, user, password)
}

// Refresh exchanges a valid refresh token for a new pair. Refresh tokens are
// stateless, so an old one keeps working until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	p, err := s.verifyKind(refreshToken, common.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	return s.issueTokens(user)
}

// Authenticate verifies an access token and returns its principal.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	return s.verifyKind(accessToken, common.TokenKindAccess)
}

// Inspect decodes token without verification. Diagnostics only.
func (s *AuthService) Inspect(token string) (auth.Payload, error) {
	return s.issuer.Decode(token)
}

// --- helpers below ---

func validateRegistration(email string, req RegistrationRequest) error {
	var problems []string
	if email == "" || !strings.Contains(email, "@") {
		problems = append(problems, "a valid email is required")
	}
	if len(req.Password) == 0 {
		problems = append(problems, "password is required")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		problems = append(problems, "first name is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		problems = append(problems, "last name is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (s *AuthService) verifyKind(token, kind string) (*Principal, error) {
	p, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	if typ, _ := p["typ"].(string); typ != kind {
		return nil, common.ErrInvalidToken
	}
	sub, _ := p["sub"].(string)
	if sub == "" {
		return nil, common.ErrInvalidToken
	}
	email, _ := p["email"].(string)
	return &Principal{UserID: sub, Email: email}, nil
}

func (s *AuthService) issueTokens(user *models.User) (*TokenPair, error) {
	now := s.issuer.Now()

	access, err := s.issuer.Sign(auth.Payload{
		"sub":   user.ID,
		"email": user.Email,
		"typ":   common.TokenKindAccess,
	}, s.AccessExpiry(now).Sub(now))
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}

	refresh, err := s.issuer.Sign(auth.Payload{
		"sub": user.ID,
		"typ": common.TokenKindRefresh,
	}, s.RefreshExpiry(now).Sub(now))
	if err != nil {
		return nil, fmt.Errorf("%w: sign refresh token: %v", common.ErrorInternal, err)
	}

	return &TokenPair{
		Access:           access.Value,
		Refresh:          refresh.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
