// Package app composes the storefront: stores, cache, token issuer and the
// account, catalog, cart and order services.
//
// Layout:
//
//	internal/app/
//	├── application.go   # Application wiring and lifecycle
//	├── domain/          # user, product, cart, order models
//	├── storage/         # store interfaces; memory/ and postgres/ implementations
//	├── services/        # accounts, catalog, cart, orders
//	├── httpapi/         # REST handlers and routing under /api
//	├── metrics/         # prometheus collectors
//	├── runtime/         # process wiring from config
//	└── system/          # lifecycle manager and cron housekeeping
//
// Nil stores passed to New fall back to the in-memory store, which is what
// tests and STORE_DRIVER=memory use.
package app
