package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/api"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/config"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/shutdown"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/startup"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/seed"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/lifecycle"
	"github.com/spf13/cobra"
)

func main() {
	var configDir string
	root := &cobra.Command{
		Use:          "been",
		Short:        "Activity rating and interest analysis service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", "", "Directory containing config.yaml")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configDir)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log)
		},
	}

	var seedFile string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load activities and universes from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configDir)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg, log, seedFile, cmd.OutOrStdout())
		},
	}
	seedCmd.Flags().StringVar(&seedFile, "file", "config/activities.yaml", "Seed file")

	var userID, sessionID string
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the stored ratings of a user or session and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configDir)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, log, rating.Identity{SessionID: sessionID, UserID: userID}, cmd.OutOrStdout())
		},
	}
	analyzeCmd.Flags().StringVar(&userID, "user", "", "User id")
	analyzeCmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	analyzeCmd.MarkFlagsMutuallyExclusive("user", "session")
	analyzeCmd.MarkFlagsOneRequired("user", "session")

	root.AddCommand(serveCmd, seedCmd, analyzeCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func setup(configDir string) (*config.Config, *logger.Logger, error) {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// 1. Components and caches
	app, err := startup.InitializeApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer app.Close()

	// 2. Background services
	graceful := lifecycle.NewManager(log.SugaredLogger)
	forceful := lifecycle.NewManager(log.SugaredLogger)
	if err := app.StartBackground(graceful); err != nil {
		return err
	}

	// 3. HTTP server
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 4. Block until a signal, then shut down in order
	coordinator := shutdown.NewCoordinator(graceful, forceful, log)
	coordinator.OnFinal(app.FlushSessions)

	done := make(chan struct{})
	go func() {
		coordinator.ListenForSignalsAndShutdown(server)
		close(done)
	}()

	select {
	case err, ok := <-serveErr:
		if ok && err != nil {
			coordinator.Shutdown(nil)
			return fmt.Errorf("http server: %w", err)
		}
		<-done
	case <-done:
	}
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, log *logger.Logger, path string, out io.Writer) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	db, rdb, status, err := startup.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	res, err := seed.Apply(ctx, db, f, time.Now())
	if err != nil {
		return err
	}

	// republish the pool so running instances pick it up on their next refresh
	if err := activity.NewPool(activity.NewRepository(db), rdb, status, log).Refresh(ctx); err != nil {
		log.Warn("republishing activity pool failed", "error", err)
	}

	fmt.Fprintf(out, "seeded %d activities and %d universes\n", res.Activities, res.Universes)
	return nil
}

func runAnalyze(ctx context.Context, cfg *config.Config, log *logger.Logger, owner rating.Identity, out io.Writer) error {
	db, rdb, status, err := startup.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	app, err := startup.NewApp(cfg, log, db, rdb, status)
	if err != nil {
		return err
	}

	result, err := app.Analysis.Analyze(ctx, analysis.Request{Owner: owner})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
