package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- users repository ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	calls []string

	createErr error
	getErr    error
	deleteErr error
	listErr   error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "getByEmail")
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "getByID")
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, u.ID)
	return nil
}

func (f *fakeUsersRepo) List(context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsersRepo) add(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.byID[u.ID] = &cp
}

func (f *fakeUsersRepo) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }

// --- identity provider ---

type fakeProvider struct {
	mu        sync.Mutex
	passwords map[string]string
	disabled  map[string]bool
	remoteIDs map[string]bool

	verifyCalls int
	created     []identity.Account
	deleted     []string

	verifyErr error
	createErr error
	deleteErr error
	existsErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		passwords: map[string]string{},
		disabled:  map[string]bool{},
		remoteIDs: map[string]bool{},
	}
}

func (p *fakeProvider) VerifyCredentials(_ context.Context, email string, password []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls++
	if p.verifyErr != nil {
		return p.verifyErr
	}
	stored, ok := p.passwords[email]
	if !ok {
		return common.ErrAccountNotFound
	}
	if p.disabled[email] {
		return common.ErrAccountDisabled
	}
	if stored != string(password) {
		return common.ErrInvalidPassword
	}
	return nil
}

func (p *fakeProvider) CreateAccount(_ context.Context, acct identity.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return p.createErr
	}
	p.created = append(p.created, acct)
	p.passwords[acct.Email] = string(acct.Password)
	p.remoteIDs[acct.UID] = true
	return nil
}

func (p *fakeProvider) DeleteAccount(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, uid)
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.remoteIDs, uid)
	return nil
}

func (p *fakeProvider) AccountExists(_ context.Context, uid string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.existsErr != nil {
		return false, p.existsErr
	}
	return p.remoteIDs[uid], nil
}

// --- clock / wiring ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type failingHasher struct{}

func (failingHasher) Hash([]byte) (string, error) { return "", common.ErrHashing }

type harness struct {
	svc      *AuthService
	repo     *fakeUsersRepo
	provider *fakeProvider
	clock    *fakeClock
	issuer   *auth.TokenIssuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	issuer, err := auth.NewTokenIssuer([]byte("test-secret"), auth.WithClock(clock.Now))
	require.NoError(t, err)

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	repo := newFakeUsersRepo()
	provider := newFakeProvider()

	cfg := &config.Config{
		AccessTokenValidityDuration:  config.DefaultAccessTokenValidity,
		RefreshTokenValidityDuration: config.DefaultRefreshTokenValidity,
	}

	svc := NewAuthService(nil, &fakeRepoManager{u: repo}, hasher, issuer, provider, cfg, nil)

	return &harness{svc: svc, repo: repo, provider: provider, clock: clock, issuer: issuer}
}
