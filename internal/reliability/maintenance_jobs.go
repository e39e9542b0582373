package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/brickvault/internal/database"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds in GB
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// LedgerVerifier refolds every account and compares it with its cached balance
type LedgerVerifier interface {
	VerifyAll(ctx context.Context) (checked, drifted int, err error)
}

// DiskUsageFunc reports free bytes for a path
type DiskUsageFunc func(path string) (freeBytes uint64, err error)

// MaintenanceJob performs daily database maintenance
type MaintenanceJob struct {
	databases []*database.DB
	verifier  LedgerVerifier
	dataDir   string
	diskUsage DiskUsageFunc
	timeout   time.Duration
	log       zerolog.Logger
}

// NewMaintenanceJob creates the maintenance job. verifier may be nil.
func NewMaintenanceJob(databases []*database.DB, verifier LedgerVerifier, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		verifier:  verifier,
		dataDir:   dataDir,
		diskUsage: gopsutilFree,
		timeout:   10 * time.Minute,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Run executes the maintenance job. Integrity failures and critically low
// disk space abort the run; everything else is logged and skipped.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Str("database", db.Name()).Err(err).Msg("CRITICAL: integrity check failed")
			return err
		}
	}

	for _, db := range j.databases {
		done := utils.MeasureDBQuery("wal_checkpoint:"+db.Name(), j.log)
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Str("database", db.Name()).Err(err).Msg("WAL checkpoint failed")
			continue
		}
		done(0)
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if j.verifier != nil {
		checked, drifted, err := j.verifier.VerifyAll(ctx)
		if err != nil {
			j.log.Error().Err(err).Msg("Ledger verification failed")
			return fmt.Errorf("ledger verification failed: %w", err)
		}
		event := j.log.Info()
		if drifted > 0 {
			event = j.log.Warn()
		}
		event.Int("checked", checked).Int("drifted", drifted).Msg("Ledger verification completed")
	}

	j.logDatabaseStats()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed")
	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

func (j *MaintenanceJob) checkDiskSpace() error {
	free, err := j.diskUsage(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read disk usage")
		return nil
	}

	availableGB := float64(free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < criticalFreeGB {
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	}
	if availableGB < lowFreeGB {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}

func (j *MaintenanceJob) logDatabaseStats() {
	for _, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Error().Str("database", db.Name()).Err(err).Msg("Failed to get database stats")
			continue
		}
		j.log.Info().
			Str("database", db.Name()).
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_size_bytes", stats.WALSizeBytes).
			Int64("freelist_count", stats.FreelistCount).
			Msg("Database stats")
	}
}

func gopsutilFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
