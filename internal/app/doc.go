// Package app composes the platform's services into a running application.
//
// It is the wiring layer, not a business logic layer. Business rules live in
// internal/app/services/; this package builds those services with their
// storage and notification dependencies and exposes them as one Application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct and service wiring
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Accounts, roles, KYC state
//	│   ├── task/           # Tasks and submissions
//	│   ├── wallet/         # Transactions and withdrawals
//	│   └── ...             # Lottery, market, courses, feed, plans
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── services/           # Business logic, one package per concern
//	├── httpapi/            # HTTP handlers, routing, admin audit trail
//	├── scheduler/          # Cron-driven jobs (lottery draws, digests)
//	├── system/             # Lifecycle manager for background services
//	├── runtime/            # Process bootstrap: config, DB, migrations, serve
//	├── cache/              # Redis-backed read cache
//	└── metrics/            # Prometheus collectors
//
// # Adding a New Domain
//
// When adding a new domain (for example "badges"):
//
//  1. Create models in internal/app/domain/badges/
//  2. Add a store interface to internal/app/storage/interfaces.go
//  3. Implement it in storage/memory/ and storage/postgres/
//  4. Create the service in internal/app/services/badges/
//  5. Wire it in application.go and route it in httpapi/
package app
