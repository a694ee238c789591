// Package server wires configuration, the user directory, the identity
// provider and the token issuer into the gRPC server and the maintenance
// tasks.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
}

// core holds what both the server and the maintenance tasks need.
type core struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    *identity.Client
}

// openRepositories is a seam for repomanager.Open.
var openRepositories = repomanager.Open

func buildCore(ctx context.Context, c *config.Config) (*core, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return openCore(ctx, c, true)
}

// openCore opens the directory and, when withProvider is set, the identity
// provider client. The caller validates c first.
func openCore(ctx context.Context, c *config.Config, withProvider bool) (*core, error) {
	db, rm, err := openRepositories(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	cr := &core{db: db, repomanager: rm}
	if !withProvider {
		return cr, nil
	}

	admin, err := identity.NewRESTAdmin(ctx, identity.AdminConfig{
		Endpoint:        c.IdentityEndpoint,
		ProjectID:       c.IdentityProjectID,
		CredentialsFile: c.IdentityCredentialsFile,
		Timeout:         c.IdentityTimeout,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cr.provider = identity.NewClient(identity.Config{
		APIKey:   c.IdentityAPIKey,
		Endpoint: c.IdentityEndpoint,
		Timeout:  c.IdentityTimeout,
	}, admin)

	return cr, nil
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	cr, err := buildCore(ctx, c)
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewPasswordHasher(c.PasswordHashCost)
	if err != nil {
		_ = cr.db.Close()
		return nil, err
	}

	issuer, err := auth.NewTokenIssuer([]byte(c.SecretKey))
	if err != nil {
		_ = cr.db.Close()
		return nil, err
	}

	as := services.NewAuthService(cr.db, cr.repomanager, hasher, issuer, cr.provider, c, logger.With("module", "auth_service"))

	return &App{config: c, logger: logger, db: cr.db, authService: as}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the directory.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
