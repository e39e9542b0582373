// Package di provides dependency injection wiring and initialization.
package di

import (
	"errors"

	"github.com/aristath/brickvault/internal/clientdata"
	"github.com/aristath/brickvault/internal/clients/chainindexer"
	"github.com/aristath/brickvault/internal/database"
	"github.com/aristath/brickvault/internal/events"
	"github.com/aristath/brickvault/internal/modules/ledger"
	"github.com/aristath/brickvault/internal/modules/planning"
	"github.com/aristath/brickvault/internal/modules/plans"
	"github.com/aristath/brickvault/internal/modules/portfolio"
	"github.com/aristath/brickvault/internal/modules/properties"
	"github.com/aristath/brickvault/internal/modules/reconciliation"
	"github.com/aristath/brickvault/internal/reliability"
	"github.com/aristath/brickvault/internal/scheduler"
)

// Container holds all dependencies for the application. It is created by
// Wire and is the single source of truth for service instances.
type Container struct {
	// Databases
	LedgerDB *database.DB // accounts, transactions, investments
	AppDB    *database.DB // properties, saved plans
	CacheDB  *database.DB // chain balance snapshots

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	LedgerRepo     *ledger.Repository
	PropertyRepo   *properties.Repository
	ClientDataRepo *clientdata.Repository

	// Clients
	IndexerClient *chainindexer.Client

	// Services
	LedgerService         *ledger.Service
	PropertyService       *properties.Service
	PlanStore             *plans.Store
	SessionStore          *planning.SessionStore
	PortfolioService      *portfolio.Service
	ReconciliationService *reconciliation.Service
	BackupService         *reliability.BackupService // nil when backups are not configured

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the scheduled jobs so they can also be run on demand
type JobInstances struct {
	Maintenance scheduler.Job
	CacheSweep  scheduler.Job
	Backup      scheduler.Job // nil when backups are not configured
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.LedgerDB, c.AppDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every database, returning the joined errors
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
