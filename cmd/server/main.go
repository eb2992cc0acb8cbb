/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the hours-allocation engine: the HTTP server and
  offline tools sharing one configuration file.

COMMANDS:
  serve     Start the HTTP API
  compute   Run one allocation from a JSON file and/or payslip text
  runs      List persisted runs
  roles     Print the role table as JSON

GLOBAL FLAGS:
  --config  Path to hours_engine.yaml (default: ./hours_engine.yaml, then ~/)
  --env     Overrides log.env (development, production)

STARTUP SEQUENCE:
  1. Load configuration (defaults when no file exists)
  2. Initialize the zap logger
  3. Build the engine policy
  4. Run the command

EXAMPLES:
  # Serve with the config in the current directory
  ./server serve

  # Offline run, workbook written next to the input
  ./server compute --input febbraio.json --output febbraio.xlsx

SEE ALSO:
  - config/config.go: configuration file format
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/config"
	"github.com/warp/hours-engine/logging"
	"github.com/warp/hours-engine/store"
	"github.com/warp/hours-engine/store/postgres"
	"github.com/warp/hours-engine/store/sqlite"
)

// App holds the application dependencies
type App struct {
	cfg    *config.Config
	engine *allocation.Engine
	logger *zap.Logger
	ctx    context.Context
}

var (
	configPath string
	env        string
	app        *App
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Hours engine - allocate payroll hours to networks",
		Long:  `Distributes workers' ordinary, overtime and on-call hours across networks and roles, and reconciles them against monthly demand.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to "+config.FileName)
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (development, production)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(computeCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(rolesCmd())

	return rootCmd
}

// initApp loads config, sets up the logger and builds the engine
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.cfg, err = loadConfig()
	if err != nil {
		return err
	}
	if env != "" {
		app.cfg.Log.Env = env
	}

	app.logger, err = logging.New(app.cfg.Log.Env, app.cfg.Log.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.logger.Debug("Configuration loaded",
		zap.String("environment", app.cfg.Log.Env),
		zap.Strings("networks", app.cfg.Engine.Networks))

	engineCfg, err := app.cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("failed to build engine policy: %w", err)
	}
	app.engine = allocation.NewEngine(engineCfg, app.logger.Named("engine"))

	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the run store selected by database.driver
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.RunStore, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("Running database migrations")
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "sqlite", "":
		s, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
