// Command simulate runs one backtest from a JSON or YAML StrategyConfig
// and writes the resulting ResultBundle to stdout (or a file), optionally
// archiving it to Postgres. Flag-based CLI wiring follows the teacher's
// minimal cmd/ style: no subcommand framework, just the standard flag
// package.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backtestlab/simcore/internal/calendar"
	"github.com/backtestlab/simcore/internal/config"
	"github.com/backtestlab/simcore/internal/driver"
	"github.com/backtestlab/simcore/internal/pricesource"
	"github.com/backtestlab/simcore/internal/progress"
	"github.com/backtestlab/simcore/internal/rebalance"
	"github.com/backtestlab/simcore/internal/signals"
	"github.com/backtestlab/simcore/internal/store"
	"github.com/backtestlab/simcore/pkg/logging"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a JSON or YAML StrategyConfig (required)")
		envPath     = flag.String("env", "", "optional .env file with host overrides (POLYGON_API_KEY, REDIS_ADDR, DATABASE_URL)")
		fixturePath = flag.String("fixture", "", "path to a SQLite fixture database; when set, skips Polygon entirely")
		outPath     = flag.String("out", "", "path to write the result bundle JSON (default: stdout)")
		runID       = flag.String("run-id", "", "identifier for this run: names its Redis progress channel and its archive entry (required by -archive)")
		archive     = flag.Bool("archive", false, "archive the result bundle to Postgres (requires DATABASE_URL)")
		debug       = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	log := logging.NewHuman(logrus.InfoLevel)
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if *configPath == "" {
		log.Fatal("missing required -config flag")
	}

	if err := config.LoadEnvOverrides(*envPath); err != nil {
		log.WithError(err).Fatal("loading env overrides")
	}

	cfgPtr, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading strategy config")
	}
	cfg := *cfgPtr

	cal, err := calendar.Get(cfg.Period.Calendar)
	if err != nil {
		log.WithError(err).Fatal("resolving calendar")
	}

	source, closeSource, err := buildPriceSource(*fixturePath, log)
	if err != nil {
		log.WithError(err).Fatal("building price source")
	}
	if closeSource != nil {
		defer closeSource()
	}

	sizing := rebalance.Sizing{Method: cfg.PositionSizing.Method, CustomWeights: cfg.PositionSizing.CustomWeights}
	rbCfg := rebalance.Config{
		Mode:              cfg.Rebalancing.Type,
		CashflowThreshold: cfg.Rebalancing.CashflowDeployThreshold,
		DriftAbsPct:       cfg.Rebalancing.Drift.AbsPct,
		DriftRelPct:       cfg.Rebalancing.Drift.RelPct,
		Taxable:           cfg.Account.Type.Taxed(),
	}
	rbCfg.CalendarCadence = cadenceForPeriod(cfg.Rebalancing.Calendar.Period)
	rb := rebalance.New(rbCfg, sizing, cal)

	signalEngine := signals.Engine{Specs: toSignalSpecs(cfg.Signals)}

	var reporter driver.ProgressReporter
	if *runID != "" {
		if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
			client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
			reporter = progress.NewRedisReporter(context.Background(), client, *runID)
		}
	}

	eventLog, err := logging.NewDailyEventLogger(*debug)
	if err != nil {
		log.WithError(err).Fatal("building daily event logger")
	}
	defer eventLog.Sync()

	sim := &driver.SimulationDriver{
		Config:     cfg,
		Source:     source,
		Calendar:   cal,
		Rebalancer: rb,
		Signals:    signalEngine,
		Progress:   reporter,
		EventLog:   eventLog,
	}

	log.WithFields(logrus.Fields{
		"start": cfg.Period.Start.Format("2006-01-02"),
		"end":   cfg.Period.End.Format("2006-01-02"),
		"universe": cfg.Universe.Symbols,
	}).Info("starting simulation")

	bundle, err := sim.Run(context.Background())
	if err != nil {
		log.WithError(err).Fatal("simulation run failed")
	}
	log.WithFields(logrus.Fields{
		"trading_days": bundle.Diagnostics.TotalDays,
		"rebalances":   bundle.Diagnostics.RebalancesPerformed,
		"trades":       bundle.Diagnostics.TradesExecuted,
		"partial":      bundle.Partial,
	}).Info("simulation complete")

	if err := writeBundle(*outPath, bundle); err != nil {
		log.WithError(err).Fatal("writing result bundle")
	}

	if *archive {
		if *runID == "" {
			log.Fatal("-archive requires -run-id")
		}
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("-archive requires DATABASE_URL to be set")
		}
		archiveBundle(context.Background(), log, dsn, *runID, bundle)
	}
}

func loadConfig(path string) (*config.StrategyConfig, error) {
	switch ext := extOf(path); ext {
	case ".yaml", ".yml":
		return config.LoadYAML(path)
	default:
		return config.LoadJSON(path)
	}
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

func buildPriceSource(fixturePath string, log *logrus.Logger) (driver.PriceSource, func(), error) {
	if fixturePath != "" {
		fs, err := pricesource.OpenFixtureSource(fixturePath)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { fs.Close() }, nil
	}

	apiKey := os.Getenv("POLYGON_API_KEY")
	if apiKey == "" {
		return nil, nil, fmt.Errorf("POLYGON_API_KEY not set and no -fixture provided")
	}
	var source driver.PriceSource = pricesource.NewPolygonSource(apiKey)

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
		source = pricesource.NewCachedSource(source, client)
		log.WithField("addr", redisAddr).Info("Redis bar cache enabled")
	}
	return source, nil, nil
}

func cadenceForPeriod(period string) calendar.Cadence {
	switch period {
	case "D":
		return calendar.Daily
	case "W":
		return calendar.WeeklyMonday
	case "M":
		return calendar.Monthly
	case "Q":
		return calendar.Quarterly
	case "A":
		return calendar.Annually
	default:
		return calendar.Monthly
	}
}

func toSignalSpecs(specs []config.SignalSpec) []signals.Spec {
	out := make([]signals.Spec, len(specs))
	for i, s := range specs {
		out[i] = signals.Spec{
			Kind:   signals.Kind(s.Kind),
			Period: s.Period,
			Slow:   s.Slow,
			Signal: s.Signal,
			StdDev: s.StdDev,
		}
	}
	return out
}

func writeBundle(path string, bundle *driver.ResultBundle) error {
	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result bundle: %w", err)
	}
	if path == "" {
		_, err := os.Stdout.Write(payload)
		return err
	}
	return os.WriteFile(path, payload, 0644)
}

func archiveBundle(ctx context.Context, log *logrus.Logger, dsn, runID string, bundle *driver.ResultBundle) {
	archive, err := store.Open(ctx, dsn)
	if err != nil {
		log.WithError(err).Fatal("connecting to run archive")
	}
	defer archive.Close()

	if err := archive.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("migrating run archive schema")
	}
	if err := archive.SaveRun(ctx, runID, time.Now(), bundle); err != nil {
		log.WithError(err).Fatal("archiving run")
	}
	log.WithField("run_id", runID).Info("run archived")
}
