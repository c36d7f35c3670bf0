package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/kakeibo/internal/expense"
	"github.com/zombor/kakeibo/internal/logger"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, fs := newConfig()
	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KAKEIBO"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger.SetLevel(*cfg.logLevel)
	if *cfg.logJSON {
		logger.SetJSON()
	}

	if err := run(cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := parseUsers(*cfg.authUsers)
	if err != nil {
		return err
	}

	logger.Log.Info().Str("store", *cfg.store).Msg("Initializing database...")
	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	logger.Log.Info().Str("scanner", *cfg.scanner).Msg("Initializing scanner...")
	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer scanner.Close()

	store, err := expense.NewLocalStorage(*cfg.draftsDir)
	if err != nil {
		return fmt.Errorf("initializing draft storage: %w", err)
	}

	service := expense.NewService(db, scanner, store)
	server := expense.NewServer(service, users)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *cfg.port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("address", "http://localhost"+httpServer.Addr).Msg("Server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if len(users) > 0 {
		logger.Log.Info().Int("users", len(users)).Msg("Basic auth enabled")
	} else {
		logger.Log.Warn().Str("owner", expense.LocalOwner).Msg("No users configured, running in single-user mode")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
