package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/backtestlab/simcore/internal/config"
	"github.com/backtestlab/simcore/internal/driver"
	"github.com/backtestlab/simcore/internal/metrics"
)

// integration tests hit a real Postgres via testcontainers-go; skipped
// unless Docker is explicitly enabled, mirroring the pack's Docker-gated
// test pattern.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("SIMCORE_TEST_DOCKER") != "true" {
		t.Skip("Docker tests disabled (set SIMCORE_TEST_DOCKER=true to enable)")
	}
}

func TestRunArchiveSaveAndLoadRoundTrips(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("simcore_test"),
		postgres.WithUsername("simcore"),
		postgres.WithPassword("simcore"),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	archive, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer archive.Close()

	require.NoError(t, archive.Migrate(ctx))

	bundle := &driver.ResultBundle{
		Config: config.StrategyConfig{
			Universe: config.Universe{Symbols: []string{"SPY", "AGG"}},
		},
		Equity: []metrics.EquityPoint{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), TotalValue: decimal.NewFromInt(10000)},
			{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), TotalValue: decimal.NewFromInt(10500)},
		},
		Partial: false,
	}

	require.NoError(t, archive.SaveRun(ctx, "run-1", time.Now(), bundle))

	loaded, err := archive.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, []string{"SPY", "AGG"}, loaded.Config.Universe.Symbols)
	require.Len(t, loaded.Equity, 2)
	require.True(t, loaded.Equity[1].TotalValue.Equal(decimal.NewFromInt(10500)))

	summaries, err := archive.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "run-1", summaries[0].RunID)
	require.InDelta(t, 10500.0, summaries[0].FinalValue, 0.01)
}
