package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/opxpress/internal/app/services/accounts"
	cartsvc "github.com/R3E-Network/opxpress/internal/app/services/cart"
	"github.com/R3E-Network/opxpress/internal/app/services/catalog"
	"github.com/R3E-Network/opxpress/internal/app/services/orders"
	"github.com/R3E-Network/opxpress/internal/app/storage"
	"github.com/R3E-Network/opxpress/internal/app/storage/memory"
	"github.com/R3E-Network/opxpress/internal/app/system"
	"github.com/R3E-Network/opxpress/internal/auth"
	"github.com/R3E-Network/opxpress/internal/cache"
	"github.com/R3E-Network/opxpress/internal/logging"
)

// SweepSchedule is the cron spec for in-process housekeeping jobs.
const SweepSchedule = "@every 10m"

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Products storage.ProductStore
	Carts    storage.CartStore
	Orders   storage.OrderStore
}

// Options configures token issuance and caching.
type Options struct {
	TokenSecret string
	TokenTTL    time.Duration
	// Cache backs the catalog cache and the token revocation list. Nil means
	// an in-process cache.
	Cache      cache.Cache
	CatalogTTL time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager   *system.Manager
	scheduler *system.Scheduler
	log       *logging.Logger

	Tokens *auth.TokenIssuer
	Cache  cache.Cache

	Accounts *accounts.Service
	Catalog  *catalog.Service
	Cart     *cartsvc.Service
	Orders   *orders.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}
	if opts.TokenSecret == "" {
		return nil, errors.New("token secret is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 10 * 24 * time.Hour
	}

	var mem *memory.Store
	fallback := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if stores.Users == nil {
		stores.Users = fallback()
	}
	if stores.Products == nil {
		stores.Products = fallback()
	}
	if stores.Carts == nil {
		stores.Carts = fallback()
	}
	if stores.Orders == nil {
		stores.Orders = fallback()
	}

	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}

	tokens := auth.NewTokenIssuer(opts.TokenSecret, opts.TokenTTL, opts.Cache)

	manager := system.NewManager()
	scheduler := system.NewScheduler(log.Named("scheduler"))
	if err := manager.Register(scheduler); err != nil {
		return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
	}

	if memCache, ok := opts.Cache.(*cache.MemoryCache); ok {
		sweepLog := log.Named("cache")
		err := scheduler.Add(SweepSchedule, "cache-sweep", func(context.Context) {
			if n := memCache.Sweep(); n > 0 {
				sweepLog.WithField("evicted", n).Debug("expired cache entries removed")
			}
		})
		if err != nil {
			return nil, err
		}
	}

	return &Application{
		manager:   manager,
		scheduler: scheduler,
		log:       log,
		Tokens:    tokens,
		Cache:     opts.Cache,
		Accounts:  accounts.New(stores.Users, tokens, log.Named("accounts")),
		Catalog:   catalog.New(stores.Products, opts.Cache, opts.CatalogTTL, log.Named("catalog")),
		Cart:      cartsvc.New(stores.Carts, stores.Products, log.Named("cart")),
		Orders:    orders.New(stores.Orders, log.Named("orders")),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Schedule adds a housekeeping job. Call before Start.
func (a *Application) Schedule(spec, name string, fn func(ctx context.Context)) error {
	return a.scheduler.Add(spec, name, fn)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
