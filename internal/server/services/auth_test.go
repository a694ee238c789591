package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func aliceRequest() RegistrationRequest {
	return RegistrationRequest{
		Email:     "  Alice@Example.com ",
		Password:  []byte("s3cret-pass"),
		FirstName: "Alice",
		LastName:  "Smith",
	}
}

func TestRegister_Success(t *testing.T) {
	h := newHarness(t)

	u, err := h.svc.Register(context.Background(), aliceRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))

	require.Len(t, h.provider.created, 1)
	acct := h.provider.created[0]
	assert.Equal(t, u.ID, acct.UID)
	assert.Equal(t, "alice@example.com", acct.Email)
	assert.Equal(t, []byte("s3cret-pass"), acct.Password)
	assert.Equal(t, "Alice Smith", acct.DisplayName)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		mut  func(*RegistrationRequest)
	}{
		{"no email", func(r *RegistrationRequest) { r.Email = " " }},
		{"no at sign", func(r *RegistrationRequest) { r.Email = "alice.example.com" }},
		{"no password", func(r *RegistrationRequest) { r.Password = nil }},
		{"no first name", func(r *RegistrationRequest) { r.FirstName = "" }},
		{"no last name", func(r *RegistrationRequest) { r.LastName = "  " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := aliceRequest()
			tt.mut(&req)
			_, err := h.svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}

	assert.Empty(t, h.repo.calls)
	assert.Empty(t, h.provider.created)
}

func TestRegister_HashingFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.hasher = failingHasher{}

	_, err := h.svc.Register(context.Background(), aliceRequest())
	assert.ErrorIs(t, err, common.ErrHashing)
	assert.Empty(t, h.repo.calls)
	assert.Empty(t, h.provider.created)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Register(context.Background(), aliceRequest())
	require.NoError(t, err)

	req := aliceRequest()
	req.Email = "ALICE@example.com"
	_, err = h.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Len(t, h.provider.created, 1)
}

func TestRegister_LocalStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.repo.createErr = errors.New("db down")

	_, err := h.svc.Register(context.Background(), aliceRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, h.provider.created)
}

func TestRegister_RemoteFailureLeavesOrphan(t *testing.T) {
	h := newHarness(t)
	h.provider.createErr = &identity.ProviderError{Op: identity.OpCreate, Reason: "EMAIL_EXISTS"}

	u, err := h.svc.Register(context.Background(), aliceRequest())
	assert.Nil(t, u)

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.ErrorIs(t, err, common.ErrProviderCreate)
	require.NotNil(t, regErr.User)

	// the local record stays behind
	assert.True(t, h.repo.has(regErr.User.ID))
	stored, err := h.repo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, regErr.User.ID, stored.ID)
}

func TestRegisterThenLogin_AccessTokenLifetime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)

	res, err := h.svc.Login(ctx, "alice@example.com", []byte("s3cret-pass"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	start := h.clock.Now()
	assert.Equal(t, start.Add(15*time.Minute), res.Tokens.AccessExpiresAt)
	assert.Equal(t, start.Add(7*24*time.Hour), res.Tokens.RefreshExpiresAt)

	p, err := h.issuer.Verify(res.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p["sub"])
	assert.Equal(t, "alice@example.com", p["email"])

	h.clock.Advance(15*time.Minute - time.Second)
	principal, err := h.svc.Authenticate(ctx, res.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, &Principal{UserID: u.ID, Email: "alice@example.com"}, principal)

	h.clock.Advance(time.Second)
	_, err = h.svc.Authenticate(ctx, res.Tokens.Access)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	_, err = h.issuer.Verify(res.Tokens.Access)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	// the refresh token is still good and yields a fresh access token
	pair, err := h.svc.Refresh(ctx, res.Tokens.Refresh)
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, pair.Access)
	assert.NoError(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)

	res, err := h.svc.Login(ctx, "alice@example.com", []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidPassword)
	assert.Nil(t, res)
}

func TestLogin_ProviderFailures(t *testing.T) {
	for _, want := range []error{
		common.ErrAccountNotFound,
		common.ErrTooManyAttempts,
		common.ErrAccountDisabled,
		common.ErrUnknownProvider,
	} {
		t.Run(want.Error(), func(t *testing.T) {
			h := newHarness(t)
			h.provider.verifyErr = want

			res, err := h.svc.Login(context.Background(), "alice@example.com", []byte("pw"))
			assert.ErrorIs(t, err, want)
			assert.Nil(t, res)
			assert.Empty(t, h.repo.calls)
		})
	}
}

func TestLogin_VerifiedButNotLocal(t *testing.T) {
	h := newHarness(t)
	h.provider.passwords["ghost@example.com"] = "pw"

	_, err := h.svc.Login(context.Background(), "ghost@example.com", []byte("pw"))
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestLogin_DirectoryFailure(t *testing.T) {
	h := newHarness(t)
	h.provider.passwords["alice@example.com"] = "pw"
	h.repo.getErr = errors.New("db down")

	_, err := h.svc.Login(context.Background(), "alice@example.com", []byte("pw"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrAccountNotFound))
}

func TestDelete_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, u, []byte("s3cret-pass")))
	assert.False(t, h.repo.has(u.ID))
	assert.Equal(t, []string{u.ID}, h.provider.deleted)
}

func TestDelete_WrongPasswordKeepsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)

	err = h.svc.Delete(ctx, u, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidPassword)
	assert.True(t, h.repo.has(u.ID))
	assert.Empty(t, h.provider.deleted)
	assert.NotContains(t, h.repo.calls, "delete")
}

func TestDelete_RemoteFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)
	h.provider.deleteErr = &identity.ProviderError{Op: identity.OpDelete, Reason: "USER_NOT_FOUND"}

	err = h.svc.Delete(ctx, u, []byte("s3cret-pass"))
	var delErr *DeletionError
	require.ErrorAs(t, err, &delErr)
	assert.ErrorIs(t, err, common.ErrProviderDelete)
	assert.Equal(t, u.ID, delErr.User.ID)
	assert.False(t, h.repo.has(u.ID))
}

func TestDelete_LocalFailureSkipsRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)
	h.repo.deleteErr = errors.New("db down")

	err = h.svc.Delete(ctx, u, []byte("s3cret-pass"))
	require.Error(t, err)
	assert.Empty(t, h.provider.deleted)
}

func TestDeleteByID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)

	assert.ErrorIs(t, h.svc.DeleteByID(ctx, "missing", []byte("s3cret-pass")), common.ErrAccountNotFound)
	require.NoError(t, h.svc.DeleteByID(ctx, u.ID, []byte("s3cret-pass")))
	assert.False(t, h.repo.has(u.ID))
}

func TestRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)
	res, err := h.svc.Login(ctx, "alice@example.com", []byte("s3cret-pass"))
	require.NoError(t, err)

	// an access token is not accepted as a refresh token and vice versa
	_, err = h.svc.Refresh(ctx, res.Tokens.Access)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = h.svc.Authenticate(ctx, res.Tokens.Refresh)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	h.clock.Advance(7 * 24 * time.Hour)
	_, err = h.svc.Refresh(ctx, res.Tokens.Refresh)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRefresh_DeletedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, aliceRequest())
	require.NoError(t, err)
	res, err := h.svc.Login(ctx, "alice@example.com", []byte("s3cret-pass"))
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(ctx, u, []byte("s3cret-pass")))

	_, err = h.svc.Refresh(ctx, res.Tokens.Refresh)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestAuthenticate_Forged(t *testing.T) {
	h := newHarness(t)

	other, err := auth.NewTokenIssuer([]byte("other"), auth.WithClock(h.clock.Now))
	require.NoError(t, err)
	tok, err := other.Sign(auth.Payload{"sub": "u1", "typ": common.TokenKindAccess}, time.Minute)
	require.NoError(t, err)

	_, err = h.svc.Authenticate(context.Background(), tok.Value)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	missingSub, err := h.issuer.Sign(auth.Payload{"typ": common.TokenKindAccess}, time.Minute)
	require.NoError(t, err)
	_, err = h.svc.Authenticate(context.Background(), missingSub.Value)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestInspect(t *testing.T) {
	h := newHarness(t)

	tok, err := h.issuer.Sign(auth.Payload{"sub": "u1", "typ": common.TokenKindAccess}, time.Minute)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	p, err := h.svc.Inspect(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "u1", p["sub"])
}

func TestExpiryHelpers(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), h.svc.AccessExpiry(now))
	assert.Equal(t, now.Add(7*24*time.Hour), h.svc.RefreshExpiry(now))

	svc := NewAuthService(nil, &fakeRepoManager{u: newFakeUsersRepo()}, nil, h.issuer, nil, &config.Config{}, nil)
	assert.Equal(t, now.Add(config.DefaultAccessTokenValidity), svc.AccessExpiry(now))
	assert.Equal(t, now.Add(config.DefaultRefreshTokenValidity), svc.RefreshExpiry(now))
}

func TestRegistrationError_Message(t *testing.T) {
	err := &RegistrationError{User: &models.User{ID: "u1"}, Err: errors.New("boom")}
	assert.Equal(t, "user u1 stored locally, remote account not created: boom", err.Error())

	derr := &DeletionError{User: &models.User{ID: "u1"}, Err: errors.New("boom")}
	assert.Equal(t, "user u1 deleted locally, remote account not deleted: boom", derr.Error())
}
