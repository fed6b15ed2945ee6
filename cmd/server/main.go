// Package main is the entry point for the Servio booking server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/servio/backend/internal/api"
	"github.com/servio/backend/internal/api/middleware"
	"github.com/servio/backend/internal/auth"
	"github.com/servio/backend/internal/booking"
	"github.com/servio/backend/internal/config"
	"github.com/servio/backend/internal/identity"
	"github.com/servio/backend/internal/logging"
	"github.com/servio/backend/internal/notification"
	"github.com/servio/backend/internal/reminder"
	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
	"github.com/servio/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "servio",
		Short:         "Vehicle service shop booking server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(healthCheckCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// healthCheckCmd probes a running server, for container HEALTHCHECK use.
func healthCheckCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "health-check",
		Short: "Check the health endpoint of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthCheck(cmd.Context(), addr)
		},
	}
	defaultAddr := ":8099"
	if cfg, err := config.Load(); err == nil && cfg.HTTPAddr != "" {
		defaultAddr = cfg.HTTPAddr
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "address the server listens on (defaults to HTTP_ADDR)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for a local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			owner, err := identity.ParseSubject(subject)
			if err != nil {
				return fmt.Errorf("subject %q: %w", subject, err)
			}
			tok, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL).Issue(owner.Key(), role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "account id or profile UUID")
	cmd.Flags().StringVar(&role, "role", models.RoleUser, "USER, STAFF or ADMIN")
	cmd.MarkFlagRequired("subject")
	return cmd
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.IsDev()), nil
}

func openDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage.DB, error) {
	db, err := storage.NewDB(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := storage.RunMigrations(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info().Strs("applied", applied).Str("path", db.Path()).Msg("database ready")
	return db, nil
}

func runServer(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	logger.Info().Str("version", version).Msg("starting servio")

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	loc := cfg.Location()
	hub := websocket.NewHub(logger)
	events := websocket.NewEventBroadcaster(hub, logger)
	resolver := identity.NewResolver(db, logger)

	provider := identity.NewProviderClient(identity.ProviderConfig{
		BaseURL: cfg.IdPBaseURL,
		APIKey:  cfg.IdPAPIKey,
		Timeout: cfg.IdPTimeout,
	})
	if !provider.Configured() {
		logger.Warn().Msg("IDP_BASE_URL not set, only local session tokens are accepted")
	}
	authn := auth.NewAuthenticator(auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL), provider, resolver, logger)

	bookings := booking.NewService(db, resolver, events, loc, logger)
	notifications := notification.NewService(db, events, logger)

	limiter := middleware.NewRateLimiter(cfg.BookingRateRPS, cfg.BookingRateBurst)
	go limiter.RunSweeper(ctx, time.Minute)

	if cfg.RemindersEnabled {
		scheduler := reminder.NewScheduler(db, notifications, reminder.Config{
			DayAheadSpec:  cfg.ReminderDayAheadCron,
			HourAheadSpec: cfg.ReminderHourAheadCron,
			Location:      loc,
		}, logger)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	router := api.NewRouter(api.Deps{
		DB:             db,
		Hub:            hub,
		Bookings:       bookings,
		Notifications:  notifications,
		Auth:           authn,
		BookingLimiter: limiter,
		Logger:         logger,
		Version:        version,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// healthURL returns the local health endpoint for a listen address.
// Wildcard and empty hosts are probed on localhost.
func healthURL(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("listen address %q: %w", addr, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/health", nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(ctx context.Context, addr string) error {
	url, err := healthURL(addr)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}
