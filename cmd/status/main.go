// Package main provides a CLI for inspecting persisted optimization runs.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/gridtune/internal/config"
	"github.com/yourusername/gridtune/internal/database"
	"github.com/yourusername/gridtune/internal/repository"
)

var (
	configFile string
	symbol     string
	limit      int
	logger     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	repos      *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	listCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Filter runs by symbol")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}

var rootCmd = &cobra.Command{
	Use:   "status",
	Short: "Inspect persisted optimization runs",
	Long:  `Lists optimization runs and shows the rankings and selection of a specific run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent optimization runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return displayRuns(cmd.Context())
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the rankings and selection of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		return displayRun(cmd.Context(), runID)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	logger = logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	db, err = database.NewDB(connectCtx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	return nil
}

func displayRuns(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	runs, err := repos.Run.ListRecent(queryCtx, symbol, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No optimization runs found.")
		return nil
	}

	fmt.Printf("%-36s  %-8s  %-12s  %-10s  %-6s  %s\n", "ID", "SYMBOL", "MODE", "STATUS", "EVALS", "STARTED")
	for _, run := range runs {
		fmt.Printf("%-36s  %-8s  %-12s  %-10s  %-6d  %s\n",
			run.ID, run.Symbol, run.Mode, run.Status, run.Evaluations,
			run.StartedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func displayRun(ctx context.Context, runID uuid.UUID) error {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	run, err := repos.Run.GetByID(queryCtx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run:       %s\n", run.ID)
	fmt.Printf("Symbol:    %s\n", run.Symbol)
	fmt.Printf("Mode:      %s\n", run.Mode)
	fmt.Printf("Objective: %s\n", run.Objective)
	fmt.Printf("Status:    %s\n", run.Status)
	fmt.Printf("Grid Size: %d (evaluated %d over %d windows)\n", run.GridSize, run.Evaluations, run.Windows)
	if run.Error != nil {
		fmt.Printf("Error:     %s\n", *run.Error)
	}

	selection, err := repos.Selection.GetByRunID(queryCtx, runID)
	if err == nil {
		fmt.Printf("\nSelection (%s):\n", selection.Strategy)
		fmt.Printf("  %s\n", selection.CombinationKey)
		fmt.Printf("  Score: %.4f\n", selection.Score)
		if selection.ValidationMean != nil && selection.ValidationStd != nil {
			fmt.Printf("  Validation: %.4f (std %.4f)\n", *selection.ValidationMean, *selection.ValidationStd)
		}
	} else if err != repository.ErrNotFound {
		return err
	}

	rankings, err := repos.Ranking.GetByRunID(queryCtx, runID, 10)
	if err != nil {
		return err
	}
	if len(rankings) > 0 {
		fmt.Println("\nTop Combinations:")
		for _, ranking := range rankings {
			fmt.Printf("  %2d. %-50s %.4f\n", ranking.Rank, ranking.CombinationKey, ranking.Score)
		}
	}
	return nil
}
