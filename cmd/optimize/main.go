// Package main provides the entry point for the parameter optimization CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridtune/internal/backtest"
	"github.com/yourusername/gridtune/internal/config"
	"github.com/yourusername/gridtune/internal/database"
	"github.com/yourusername/gridtune/internal/logger"
	"github.com/yourusername/gridtune/internal/marketdata"
	"github.com/yourusername/gridtune/internal/metrics"
	"github.com/yourusername/gridtune/internal/numeric"
	"github.com/yourusername/gridtune/internal/optimizer"
	"github.com/yourusername/gridtune/internal/progress"
	"github.com/yourusername/gridtune/internal/repository"
	"github.com/yourusername/gridtune/internal/scheduler"
	"github.com/yourusername/gridtune/internal/tracing"
)

type options struct {
	configPath string
	mode       string
	bayesian   bool
	validate   bool
	schedule   bool
	serve      bool
	skipDB     bool
	monteCarlo int
	outputCSV  string
	outputHTML string
	tracing    bool
}

func main() {
	opts := parseFlags()

	cfg := loadConfigWithSecrets(opts.configPath)
	log := logger.NewLogger(cfg.App.LogLevel)
	metrics.InitRegistry()

	tracingEnabled := os.Getenv("TRACING_ENABLED") == "true"
	if err := tracing.Initialize(tracing.Config{
		ServiceName:  cfg.App.Name,
		Enabled:      tracingEnabled,
		SamplingRate: 1,
		DaemonAddr:   os.Getenv("XRAY_DAEMON_ADDR"),
	}, log); err != nil {
		log.WithError(err).Warn("Failed to initialize tracing")
		tracingEnabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts.tracing = tracingEnabled
	app, err := buildApp(ctx, cfg, opts, log)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.close()

	if opts.serve {
		if err := app.server.Start(ctx); err != nil {
			log.Fatalf("Failed to start monitoring server: %v", err)
		}
		app.server.SetReady(true)
	}

	if opts.schedule || cfg.Schedule.Enabled {
		runScheduled(ctx, cfg, app, log)
		return
	}

	if err := app.runOnce(ctx); err != nil {
		log.Fatalf("Optimization failed: %v", err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config/config.yaml", "Path to config file")
	flag.StringVar(&opts.mode, "mode", "", "Override run mode: single or walk-forward")
	flag.BoolVar(&opts.bayesian, "bayesian", false, "Use sequential surrogate search instead of grid search")
	flag.BoolVar(&opts.validate, "validate", false, "Re-evaluate the selection per window and report stability")
	flag.BoolVar(&opts.schedule, "schedule", false, "Run on the configured cron schedule instead of once")
	flag.BoolVar(&opts.serve, "serve", false, "Expose metrics, health and progress endpoints")
	flag.BoolVar(&opts.skipDB, "skip-db", false, "Do not persist results to the database")
	flag.IntVar(&opts.monteCarlo, "monte-carlo", 0, "Resample the selection's trades this many times")
	flag.StringVar(&opts.outputCSV, "output-csv", "", "Write the ranked population to a CSV file")
	flag.StringVar(&opts.outputHTML, "output-html", "", "Write an HTML report to a file")
	flag.Parse()
	return opts
}

func loadConfigWithSecrets(path string) *config.Config {
	bootstrap := logrus.New()

	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		bootstrap.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			bootstrap.Fatal("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			bootstrap.Fatalf("Failed to load secrets: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		bootstrap.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// app wires together every collaborator of one optimization process.
type app struct {
	cfg    *config.Config
	opts   options
	log    *logrus.Logger
	engine *backtest.Engine
	driver *optimizer.Driver
	hub    *progress.Hub
	server *progress.Server
	db     *database.DB
	repos  *repository.Repositories
}

func buildApp(ctx context.Context, cfg *config.Config, opts options, log *logrus.Logger) (*app, error) {
	provider, err := marketdata.NewProvider(cfg.Data, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build data provider: %w", err)
	}

	engineCfg, err := backtest.FromConfig(&cfg.Backtest)
	if err != nil {
		return nil, err
	}
	engine, err := backtest.NewEngine(engineCfg, provider, log)
	if err != nil {
		return nil, err
	}

	driver, err := optimizer.NewDriver(engine, cfg.Optimizer.Workers, cfg.Optimizer.EvalTimeout(), log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, opts: opts, log: log, engine: engine, driver: driver}

	if opts.serve {
		a.hub = progress.NewHub(log)
		a.server = progress.NewServer(progress.Config{
			ServiceName: cfg.App.Name,
			Port:        cfg.Server.Port,
			MetricsPath: cfg.Server.MetricsPath,
			Logger:      log,
			Hub:         a.hub,
		})
	}

	if !opts.skipDB {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repos, err := repository.NewRepositories(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.repos = repos
		if a.server != nil {
			a.server.SetReady(true)
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) mode() string {
	if a.opts.mode != "" {
		return a.opts.mode
	}
	if a.cfg.Optimizer.WalkForward.Enabled {
		return "walk-forward"
	}
	return "single"
}

// runOnce executes one full optimization: search, rank, select, validate,
// report, persist.
func (a *app) runOnce(ctx context.Context) error {
	runID := uuid.New()
	runLog := logger.NewRunLogger(a.log, runID.String())
	start := time.Now()

	if a.opts.tracing {
		var seg *xray.Segment
		ctx, seg = tracing.StartRun(ctx, runID.String())
		defer seg.Close(nil)
	}

	windows, err := a.buildWindows()
	if err != nil {
		runLog.LogRunFailed("windows", err)
		return err
	}

	grid, err := a.cfg.Optimizer.BuildGridSpec()
	if err != nil {
		runLog.LogRunFailed("grid", err)
		return err
	}
	objective, err := a.cfg.Optimizer.BuildObjective()
	if err != nil {
		runLog.LogRunFailed("objective", err)
		return err
	}

	if a.opts.bayesian || a.cfg.Optimizer.Bayesian.Enabled {
		return a.runSequential(ctx, runLog, grid, objective, windows, start)
	}

	combinations, err := grid.Enumerate(a.cfg.Optimizer.MaxCombos, a.cfg.Optimizer.Seed)
	if err != nil {
		runLog.LogRunFailed("grid", err)
		return err
	}
	if grid.Size() > a.cfg.Optimizer.MaxCombos {
		runLog.LogGridSampled(grid.Size(), a.cfg.Optimizer.MaxCombos, a.cfg.Optimizer.Seed)
	}

	selectionCfg, err := a.cfg.Optimizer.BuildSelectionConfig()
	if err != nil {
		runLog.LogRunFailed("selection", err)
		return err
	}

	runLog.LogRunStarted(a.cfg.Backtest.Symbol, a.mode(), string(selectionCfg.Strategy), len(combinations), len(windows))
	a.persistRunStart(ctx, runID, grid.Size(), len(combinations), len(windows), objective)

	if a.hub != nil {
		a.driver.OnProgress = a.hub.ProgressFunc(runID.String(), "evaluation")
	}

	var population []*optimizer.EvaluatedCombination
	err = tracing.Stage(ctx, "evaluation", func(ctx context.Context) error {
		var runErr error
		population, runErr = a.driver.Run(ctx, combinations, windows)
		return runErr
	})
	if err != nil {
		a.persistRunFailure(ctx, runID, err)
		runLog.LogRunFailed("evaluation", err)
		return err
	}

	objective.ScorePopulation(population)
	ranked := optimizer.Rank(population)
	metrics.UpdatePopulationSize(float64(len(ranked)))

	selector, err := optimizer.NewSelector(grid, selectionCfg, a.log)
	if err != nil {
		a.persistRunFailure(ctx, runID, err)
		runLog.LogRunFailed("selection", err)
		return err
	}
	selector.Density = numeric.NewKDE()
	selector.Clusterer = numeric.NewKMeans()

	selection, err := selector.Select(ranked)
	if err != nil {
		metrics.RecordSelection(string(selectionCfg.Strategy), "failure")
		a.persistRunFailure(ctx, runID, err)
		runLog.LogRunFailed("selection", err)
		return err
	}
	metrics.RecordSelection(string(selection.Strategy), "success")
	metrics.UpdateBestScore(string(selection.Strategy), selection.Score)
	runLog.LogSelection(string(selection.Strategy), selection.Combination.Key(), selection.Score, len(ranked))

	report := backtest.RunReport{
		Symbol:    a.cfg.Backtest.Symbol,
		Mode:      a.mode(),
		Selection: selection,
		Ranked:    ranked,
	}

	var stability *optimizer.StabilityReport
	if a.opts.validate && !objective.Composite() {
		s, err := optimizer.ValidateSelection(ctx, a.driver, selection.Combination, objective.MetricName(), windows, a.log)
		if err != nil {
			a.log.WithError(err).Warn("Selection validation failed")
		} else {
			stability = &s
			report.Stability = stability
			runLog.LogValidation(s.Metric, s.Mean, s.Std, len(s.Windows))
		}
	}

	if a.opts.monteCarlo > 0 {
		mc, err := a.resampleSelection(ctx, selection, windows)
		if err != nil {
			a.log.WithError(err).Warn("Monte carlo resampling failed")
		} else {
			report.MonteCarlo = mc
		}
	}

	fmt.Print(backtest.GenerateConsoleReport(report))
	a.writeReports(report)
	a.persistRunResults(ctx, runID, ranked, selection, stability)

	duration := time.Since(start)
	metrics.OptimizationDuration.Observe(duration.Seconds())
	runLog.LogRunCompleted(len(ranked), duration)
	return nil
}

// runSequential drives the surrogate-model search over the first window.
func (a *app) runSequential(ctx context.Context, runLog *logger.RunLogger, grid *optimizer.GridSpec, objective *optimizer.Objective, windows []optimizer.Window, start time.Time) error {
	nCalls := a.cfg.Optimizer.Bayesian.NCalls
	dims := len(grid.SearchedNames())
	surrogate := numeric.NewSurrogate(dims, a.cfg.Optimizer.Seed)

	search, err := optimizer.NewSequentialSearch(a.driver, grid, objective, surrogate, nCalls, a.log)
	if err != nil {
		runLog.LogRunFailed("sequential", err)
		return err
	}

	runLog.LogRunStarted(a.cfg.Backtest.Symbol, "bayesian", "best", nCalls, len(windows))

	selection, err := search.Run(ctx, windows[0])
	if err != nil {
		runLog.LogRunFailed("sequential", err)
		return err
	}

	runLog.LogSelection(string(selection.Strategy), selection.Combination.Key(), selection.Score, nCalls)
	report := backtest.RunReport{
		Symbol:    a.cfg.Backtest.Symbol,
		Mode:      "bayesian",
		Selection: selection,
	}
	fmt.Print(backtest.GenerateConsoleReport(report))
	a.writeReports(report)

	runLog.LogRunCompleted(nCalls, time.Since(start))
	return nil
}

func (a *app) buildWindows() ([]optimizer.Window, error) {
	if a.opts.mode == "single" {
		startDate, _ := time.Parse("2006-01-02", a.cfg.Backtest.StartDate)
		endDate, _ := time.Parse("2006-01-02", a.cfg.Backtest.EndDate)
		return optimizer.SingleWindow(startDate, endDate), nil
	}
	if a.opts.mode == "walk-forward" && !a.cfg.Optimizer.WalkForward.Enabled {
		return nil, fmt.Errorf("walk-forward mode requires optimizer.walk_forward configuration")
	}
	return a.cfg.BuildWindows()
}

// resampleSelection reruns the chosen combination over every window and
// bootstraps the pooled trade list.
func (a *app) resampleSelection(ctx context.Context, selection optimizer.SelectionResult, windows []optimizer.Window) (*backtest.MonteCarloResult, error) {
	var trades []backtest.Trade
	for _, window := range windows {
		state, _, err := a.engine.Backtest(ctx, selection.Combination, window)
		if err != nil {
			a.log.WithError(err).WithField("window", window.Key()).Warn("Skipping window in resampling")
			continue
		}
		trades = append(trades, state.Trades...)
	}

	result, err := backtest.RunMonteCarlo(ctx, trades, backtest.MonteCarloConfig{
		Iterations:  a.opts.monteCarlo,
		Seed:        a.cfg.Optimizer.Seed,
		InitialCash: a.cfg.Backtest.InitialCash,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *app) writeReports(report backtest.RunReport) {
	if a.opts.outputCSV != "" {
		if err := backtest.GenerateCSVExport(report, a.opts.outputCSV); err != nil {
			a.log.WithError(err).Error("Failed to write CSV export")
		}
	}
	if a.opts.outputHTML != "" {
		if err := backtest.GenerateHTMLReport(report, a.opts.outputHTML); err != nil {
			a.log.WithError(err).Error("Failed to write HTML report")
		}
	}
}

func (a *app) persistRunStart(ctx context.Context, runID uuid.UUID, gridSize, combinations, windows int, objective *optimizer.Objective) {
	if a.repos == nil {
		return
	}
	objectiveName := objective.MetricName()
	if objectiveName == "" {
		objectiveName = "composite"
	}
	run := &repository.OptimizationRun{
		ID:        runID,
		Symbol:    a.cfg.Backtest.Symbol,
		Mode:      a.mode(),
		Objective: objectiveName,
		GridSize:  gridSize,
		Windows:   windows,
		StartedAt: time.Now().UTC(),
		Status:    repository.RunStatusRunning,
	}
	if err := a.repos.Run.Create(ctx, run); err != nil {
		a.log.WithError(err).Error("Failed to persist run start")
	}
}

func (a *app) persistRunFailure(ctx context.Context, runID uuid.UUID, runErr error) {
	if a.repos == nil {
		return
	}
	if err := a.repos.Run.Fail(ctx, runID, runErr.Error()); err != nil {
		a.log.WithError(err).Error("Failed to persist run failure")
	}
}

func (a *app) persistRunResults(ctx context.Context, runID uuid.UUID, ranked []*optimizer.EvaluatedCombination, selection optimizer.SelectionResult, stability *optimizer.StabilityReport) {
	if a.repos == nil {
		return
	}

	rankings := make([]*repository.RunRanking, 0, len(ranked))
	for i, ec := range ranked {
		rankings = append(rankings, &repository.RunRanking{
			RunID:          runID,
			Rank:           i + 1,
			CombinationKey: ec.Combination.Key(),
			Parameters:     ec.Combination.Values(),
			Score:          ec.Score,
			Metrics:        ec.Metrics,
		})
	}
	if err := a.repos.Ranking.SaveAll(ctx, rankings); err != nil {
		a.log.WithError(err).Error("Failed to persist rankings")
	}

	sel := &repository.RunSelection{
		RunID:          runID,
		Strategy:       string(selection.Strategy),
		CombinationKey: selection.Combination.Key(),
		Parameters:     selection.Combination.Values(),
		Score:          selection.Score,
		Diagnostics:    selection.Diagnostics,
	}
	if stability != nil {
		sel.ValidationMean = &stability.Mean
		sel.ValidationStd = &stability.Std
	}
	if err := a.repos.Selection.Save(ctx, sel); err != nil {
		a.log.WithError(err).Error("Failed to persist selection")
	}

	if err := a.repos.Run.Complete(ctx, runID, len(ranked)); err != nil {
		a.log.WithError(err).Error("Failed to persist run completion")
	}
}

func runScheduled(ctx context.Context, cfg *config.Config, a *app, log *logrus.Logger) {
	cronExpr := cfg.Schedule.Cron
	if cronExpr == "" {
		log.Fatal("schedule.cron must be configured for scheduled mode")
	}

	sched := scheduler.NewScheduler(log)
	if err := sched.ScheduleOptimization(cronExpr, a.runOnce); err != nil {
		log.Fatalf("Failed to schedule optimization: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.WithField("next_run", sched.GetNextRun().Format(time.RFC3339)).Info("Running on schedule, press Ctrl+C to stop")

	<-ctx.Done()
	if err := sched.Stop(); err != nil {
		log.WithError(err).Error("Failed to stop scheduler cleanly")
	}
}
