// Package server wires configuration, storage, services and transports
// into a running accounts server.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/config"
	"github.com/dmitrijs2005/channelhub/internal/server/httpapi"
	"github.com/dmitrijs2005/channelhub/internal/server/metrics"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/channelhub/internal/server/services"

	gs "github.com/dmitrijs2005/channelhub/internal/server/grpc"
)

var openPostgres = repomanager.OpenPostgres

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	metrics     *metrics.Metrics
	guard       *auth.Guard
	users       *services.UserService
	media       *services.MediaService
}

// NewApp opens storage, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(level)

	app := &App{config: c, logger: logger, metrics: metrics.New()}

	switch c.Storage {
	case config.StorageMemory:
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		app.repomanager = repomanager.NewMemoryRepositoryManager()
	default:
		db, err := openPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		app.repomanager = repomanager.NewPostgresRepositoryManager(db)
	}

	if err := app.repomanager.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  c.AccessTokenSecret,
		AccessExpiry:  c.AccessTokenExpiry,
		RefreshSecret: c.RefreshTokenSecret,
		RefreshExpiry: c.RefreshTokenExpiry,
	})
	app.guard = auth.NewGuard(issuer, app.repomanager.Users(), logger)
	app.users = services.NewUserService(app.repomanager, issuer, logger, app.metrics, c.RevokeOnRefreshReuse)
	app.media = services.NewMediaService(app.repomanager, c, logger)

	return app, nil
}

func (app *App) routerDeps() httpapi.Deps {
	return httpapi.Deps{
		Accounts:     app.users,
		Media:        app.media,
		Guard:        app.guard,
		Health:       app.repomanager,
		Metrics:      app.metrics,
		Logger:       app.logger,
		CookieSecure: app.config.CookieSecure,
	}
}

// Close releases the database handle, if any.
func (app *App) Close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close failed", "error", err)
		}
	}
}

// Run serves HTTP and gRPC until a signal arrives or either server fails.
func (app *App) Run(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...")

	httpSrv := httpapi.NewServer(app.config.HTTPAddr, httpapi.NewRouter(app.routerDeps()), app.logger)
	grpcSrv := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.users, app.media, app.guard)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				app.logger.Error(ctx, name+" server failed", "error", err)
				cancel()
			}
		}()
	}
	run("http", httpSrv.Run)
	run("grpc", grpcSrv.Run)

	wg.Wait()
	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}
