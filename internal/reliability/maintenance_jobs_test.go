package reliability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	calls   int
	drifted int
	err     error
}

func (f *fakeVerifier) VerifyAll(context.Context) (int, int, error) {
	f.calls++
	return 5, f.drifted, f.err
}

func freeBytes(n uint64) DiskUsageFunc {
	return func(string) (uint64, error) { return n, nil }
}

func TestMaintenanceJob_Run(t *testing.T) {
	dbs := setupBackupDBs(t)
	verifier := &fakeVerifier{drifted: 1}
	job := NewMaintenanceJob(dbs, verifier, t.TempDir(), zerolog.Nop())
	job.diskUsage = freeBytes(50e9)

	require.NoError(t, job.Run())
	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, "maintenance", job.Name())
}

func TestMaintenanceJob_CriticalDiskSpace(t *testing.T) {
	dbs := setupBackupDBs(t)
	verifier := &fakeVerifier{}
	job := NewMaintenanceJob(dbs, verifier, t.TempDir(), zerolog.Nop())
	job.diskUsage = freeBytes(100e6)

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GB free")
	assert.Zero(t, verifier.calls, "verification should not run after a disk halt")
}

func TestMaintenanceJob_DiskUsageErrorIsNotFatal(t *testing.T) {
	dbs := setupBackupDBs(t)
	job := NewMaintenanceJob(dbs, nil, t.TempDir(), zerolog.Nop())
	job.diskUsage = func(string) (uint64, error) { return 0, errors.New("no statfs") }

	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_VerifierFailure(t *testing.T) {
	dbs := setupBackupDBs(t)
	job := NewMaintenanceJob(dbs, &fakeVerifier{err: errors.New("fold failed")}, t.TempDir(), zerolog.Nop())
	job.diskUsage = freeBytes(50e9)

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fold failed")
}

func TestMaintenanceJob_RealDiskUsage(t *testing.T) {
	free, err := gopsutilFree(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}
