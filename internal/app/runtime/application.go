package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/opxpress/internal/app"
	"github.com/R3E-Network/opxpress/internal/app/httpapi"
	"github.com/R3E-Network/opxpress/internal/app/storage/postgres"
	"github.com/R3E-Network/opxpress/internal/cache"
	"github.com/R3E-Network/opxpress/internal/config"
	"github.com/R3E-Network/opxpress/internal/logging"
	"github.com/R3E-Network/opxpress/internal/middleware"
)

// limiterIdle is how long a client's rate limiter bucket survives unused.
const limiterIdle = 30 * time.Minute

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	app     *app.Application
	server  *httpServer
	handler http.Handler
	db      *sqlx.DB
	redis   *cache.RedisCache
}

// NewApplication builds the application from cfg. A nil cfg is loaded from
// the environment.
func NewApplication(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if log == nil {
		log = logging.New("opxpress", cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	var stores app.Stores
	if cfg.Database.Driver == config.DriverPostgres {
		db, err := OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		store := postgres.New(db)
		stores = app.Stores{Users: store, Products: store, Carts: store, Orders: store}
	} else {
		log.Warn("STORE_DRIVER=memory; data is lost on restart")
	}

	opts := app.Options{
		TokenSecret: cfg.Auth.TokenSecret,
		TokenTTL:    cfg.Auth.TokenExpiration,
		CatalogTTL:  cfg.Cache.CatalogTTL,
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.OpenRedis(ctx, cfg.Cache.RedisURL, "opxpress")
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		a.redis = rc
		opts.Cache = rc
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return nil, err
	}
	a.app = application

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.Named("ratelimit"))
	if err := application.Schedule(app.SweepSchedule, "ratelimit-cleanup", func(context.Context) {
		if n := limiter.Cleanup(limiterIdle); n > 0 {
			log.WithField("removed", n).Debug("idle rate limiter buckets removed")
		}
	}); err != nil {
		return nil, err
	}

	a.handler = httpapi.NewHandler(application, httpapi.Options{
		AllowedOrigin:     cfg.Server.AllowedOrigin,
		CookieSecure:      cfg.Auth.CookieSecure,
		AuthLimiter:       limiter,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}, log)
	a.server = newHTTPServer(cfg.Server.Addr(), a.handler, log.Named("http"))
	if err := application.Attach(a.server); err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// App exposes the composed services, e.g. for seeding.
func (a *Application) App() *app.Application { return a.app }

// Handler is the root HTTP handler.
func (a *Application) Handler() http.Handler { return a.handler }

// Addr is the bound listen address after Start.
func (a *Application) Addr() string { return a.server.Addr() }

// Start starts the housekeeping scheduler and the HTTP server.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Run starts the application and blocks until the context is cancelled or
// the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-a.server.errs:
		return err
	}
}

// Shutdown stops services in reverse order within the configured timeout,
// then closes the database and redis.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.app.Stop(shutdownCtx)
	a.closeResources()
	return err
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
}

// OpenDatabase connects to postgres with the configured pool settings and
// verifies the connection.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url not configured")
	}

	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
