package di

import (
	"fmt"

	"github.com/aristath/brickvault/internal/clientdata"
	"github.com/aristath/brickvault/internal/config"
	"github.com/aristath/brickvault/internal/reliability"
	"github.com/aristath/brickvault/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the housekeeping jobs and schedules them.
// The scheduler is created but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{
		Maintenance: reliability.NewMaintenanceJob(
			container.Databases(),
			container.LedgerService,
			cfg.DataDir,
			log,
		),
		CacheSweep: clientdata.NewCleanupJob(container.ClientDataRepo, log),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService)
	}

	schedule := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Schedule.Maintenance, instances.Maintenance},
		{cfg.Schedule.CacheSweep, instances.CacheSweep},
		{cfg.Schedule.Backup, instances.Backup},
	}
	for _, entry := range schedule {
		if entry.job == nil {
			continue
		}
		if err := container.Scheduler.AddJob(entry.spec, entry.job); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", entry.job.Name(), err)
		}
	}

	return instances, nil
}
