package di

import (
	"context"
	"fmt"

	"github.com/aristath/brickvault/internal/clientdata"
	"github.com/aristath/brickvault/internal/clients/chainindexer"
	"github.com/aristath/brickvault/internal/config"
	"github.com/aristath/brickvault/internal/database"
	"github.com/aristath/brickvault/internal/events"
	"github.com/aristath/brickvault/internal/modules/ledger"
	"github.com/aristath/brickvault/internal/modules/planning"
	"github.com/aristath/brickvault/internal/modules/plans"
	"github.com/aristath/brickvault/internal/modules/portfolio"
	"github.com/aristath/brickvault/internal/modules/properties"
	"github.com/aristath/brickvault/internal/modules/reconciliation"
	"github.com/aristath/brickvault/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories, clients and services in dependency order
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Events
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Repositories
	container.LedgerRepo = ledger.NewRepository(container.LedgerDB.Conn(), log)
	container.PropertyRepo = properties.NewRepository(container.AppDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	// Catalog first: the ledger validates property references against it
	container.PropertyService = properties.NewService(container.PropertyRepo, log)
	container.LedgerService = ledger.NewService(
		container.LedgerRepo,
		container.PropertyService,
		container.EventManager,
		log,
	)

	container.PlanStore = plans.NewStore(container.AppDB.Conn(), container.EventManager, log)
	container.SessionStore = planning.NewSessionStore(
		container.PropertyService,
		container.LedgerService,
		container.PlanStore,
		log,
	)
	container.PortfolioService = portfolio.NewService(container.LedgerService, container.PropertyService, log)

	container.IndexerClient = chainindexer.NewClient(chainindexer.Config{
		BaseURL:       cfg.Indexer.BaseURL,
		APIKey:        cfg.Indexer.APIKey,
		Timeout:       cfg.Indexer.Timeout,
		MaxRetries:    cfg.Indexer.MaxRetries,
		RetryDelay:    cfg.Indexer.RetryDelay,
		RatePerSecond: cfg.Indexer.RatePerSecond,
		RateBurst:     cfg.Indexer.RateBurst,
	}, log)
	container.ReconciliationService = reconciliation.NewService(
		container.IndexerClient,
		container.LedgerService,
		container.LedgerService,
		container.ClientDataRepo,
		container.EventManager,
		reconciliation.Config{
			DefaultChainID: cfg.Indexer.DefaultChainID,
			Tolerance:      cfg.Reconcile.Tolerance,
			CacheTTL:       cfg.Reconcile.CacheTTL,
			FetchTimeout:   cfg.Indexer.LookupBudget(),
		},
		log,
	)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		// cache.db is rebuildable and stays out of backups
		container.BackupService = reliability.NewBackupService(
			store,
			[]*database.DB{container.LedgerDB, container.AppDB},
			cfg.DataDir,
			cfg.Backup.Prefix,
			cfg.Backup.RetentionDays,
			container.EventManager,
			log,
		)
	} else {
		log.Info().Msg("Backups disabled: no bucket configured")
	}

	log.Info().Msg("Services initialized")
	return nil
}
