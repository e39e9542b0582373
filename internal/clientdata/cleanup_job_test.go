package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJobName(t *testing.T) {
	job := NewCleanupJob(NewRepository(setupTestDB(t)), zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	job := NewCleanupJob(repo, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableChainBalances, "expired", "x", -time.Hour))
	require.NoError(t, repo.Store(ctx, TableChainBalances, "fresh", "x", time.Hour))

	require.NoError(t, job.Run())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM chain_balances").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestCleanupJobRunEmptyTables(t *testing.T) {
	job := NewCleanupJob(NewRepository(setupTestDB(t)), zerolog.Nop())
	require.NoError(t, job.Run())
}
