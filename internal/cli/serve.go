package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/relistr/relistr/internal/alerts"
	"github.com/relistr/relistr/internal/api"
	"github.com/relistr/relistr/internal/automation"
	"github.com/relistr/relistr/internal/cleanup"
	"github.com/relistr/relistr/internal/config"
	"github.com/relistr/relistr/internal/crypto"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/metrics"
	"github.com/relistr/relistr/internal/ratelimit"
	"github.com/relistr/relistr/internal/service"
	"github.com/relistr/relistr/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the Relistr server",
	Long: `Start the Relistr server in main mode.

This command starts the HTTP server that handles marketplace connections,
credential storage, and session authentication.

Example:
  relistr serve --config config.yaml --db ./data/relistr.db

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", 0, "Shutdown timeout (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting Relistr server...")
		log.Printf("Config path: %s", globalFlags.Config)
	}

	// Load configuration
	logger := logging.NewLogger(logging.WithService("relistr"))
	loader := config.NewLoader(globalFlags.Config, logger)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Apply CLI flags to config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.Timeout != 0 {
		cfg.Server.ShutdownTimeout = serveFlags.Timeout
	}
	if globalFlags.DBPath != "" {
		cfg.Database.Path = globalFlags.DBPath
	}
	if cfg.Server.LogLevel != "" {
		logger = logging.NewLogger(
			logging.WithService("relistr"),
			logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)),
		)
	}

	if globalFlags.Verbose {
		log.Printf("Configuration loaded successfully")
		log.Printf("Server host: %s, port: %d", cfg.Server.Host, cfg.Server.HTTPPort)
	}

	// Create the credential store
	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	cipher, err := crypto.NewCipher(cfg.Encryption.MasterKey)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}

	// Rate limit counters live next to the credentials. A nil counter
	// store keeps the limiter permanently fail-open when limiting is off.
	var counters ratelimit.CounterStore
	var counterPruner cleanup.CounterPruner
	if cfg.RateLimit.Enabled {
		if isMemoryPath(cfg.Database.Path) {
			memCounters := ratelimit.NewMemoryCounterStore()
			counters = memCounters
			counterPruner = memCounters
		} else {
			sqlCounters, err := ratelimit.NewSQLiteCounterStore(cfg.Database.Path)
			if err != nil {
				st.Close()
				return fmt.Errorf("failed to create rate limit store: %w", err)
			}
			counters = sqlCounters
			counterPruner = sqlCounters
			defer sqlCounters.Close()
		}
		ratelimit.DefaultOptions = ratelimit.Options{
			Requests: cfg.RateLimit.DefaultRequests,
			Window:   cfg.RateLimit.DefaultWindow,
		}
	}

	notifier := alerts.NewNotifier(alerts.Config{
		TelegramToken:  cfg.Alerts.TelegramToken,
		TelegramChatID: cfg.Alerts.TelegramChatID,
		RatePerMinute:  cfg.Alerts.RatePerMinute,
		DedupWindow:    cfg.Alerts.DedupWindow,
	}, logger)

	m := metrics.NewMetrics("relistr")
	limiter := ratelimit.New(counters, m, logger)
	limiter.SetFailOpenNotifier(notifier)

	drivers := automation.NewRegistry(automation.Options{
		Logger:            logger,
		Headless:          cfg.Automation.Headless,
		NavigationTimeout: cfg.Automation.NavigationTimeout,
		SelectorTimeout:   cfg.Automation.SelectorTimeout,
		OutcomeTimeout:    cfg.Automation.OutcomeTimeout,
		TypeDelayMin:      cfg.Automation.TypeDelayMin,
		TypeDelayMax:      cfg.Automation.TypeDelayMax,
		DebuggerURL:       cfg.Automation.DebuggerURL,
	})

	credentials := service.NewCredentialService(st, cipher, logger)

	// Create API server; Shutdown closes the store.
	server := api.NewServer(cfg.Server, api.Deps{
		Store:       st,
		Credentials: credentials,
		Drivers:     drivers,
		Limiter:     limiter,
		Notifier:    notifier,
		Metrics:     m,
		Logger:      logger,
	})

	// Background retention: expired sessions always, rate limit counters
	// when limiting is on.
	janitor := cleanup.NewManager(cleanup.Config{
		Interval:         cfg.RateLimit.PruneInterval,
		CounterRetention: 2 * cfg.RateLimit.DefaultWindow,
	}, st, counterPruner, logger)
	if err := janitor.Start(context.Background()); err != nil {
		logger.Warn("cleanup loop not started", "error", err.Error())
	} else {
		defer janitor.Stop()
	}

	// Hot-reload keeps log output honest about what the running process
	// actually uses: only restart-safe knobs are picked up live.
	loader.SetOnChange(func(next *config.Config) {
		logger.Info("configuration reloaded",
			"rate_limit_enabled", next.RateLimit.Enabled,
			"headless", next.Automation.Headless)
	})
	if err := loader.StartWatcher(); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}
	defer loader.StopWatcher()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := api.SetupSignalHandler()
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if globalFlags.Verbose {
		log.Println("Server stopped")
	}
	return nil
}

// buildStore selects the persistence backend from the configured path.
func buildStore(cfg *config.Config) (store.Store, error) {
	if isMemoryPath(cfg.Database.Path) {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.Database.Path)
}

func isMemoryPath(path string) bool {
	return path == "" || path == ":memory:"
}
