package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/dibs/internal/api"
	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/config"
	"github.com/erazemk/dibs/internal/db"
	"github.com/erazemk/dibs/internal/model"
	"github.com/erazemk/dibs/internal/seed"
	"github.com/erazemk/dibs/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			config.Usage(os.Stdout)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		config.Usage(os.Stderr)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("dibs stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Idempotent; applies pending migrations.
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	owner, err := ensureOwner(ctx, database, cfg.OwnerName)
	if err != nil {
		return err
	}

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}
	if n, err := store.PurgeRevokedTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired revocations", "count", n)
	}

	cat, err := catalog.New(store.NewBackend(database), catalog.Options{
		CacheSize:   cfg.CacheSize,
		BulkTimeout: cfg.BulkTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating catalog: %w", err)
	}
	if err := cat.Load(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	if cfg.SeedPath != "" {
		viewer := model.Viewer{ID: owner.ID, Role: owner.Role}
		res, err := seed.ImportFile(ctx, cat, viewer, cfg.SeedPath)
		if err != nil {
			return fmt.Errorf("importing seed: %w", err)
		}
		if res.Skipped {
			slog.Info("seed skipped, catalog not empty", "path", cfg.SeedPath)
		}
	}

	router, err := api.NewRouter(database, cat, jwtSecret, api.NewRegistry())
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// ensureOwner returns the owner account, creating it with a generated
// password on first run.
func ensureOwner(ctx context.Context, database *sql.DB, username string) (*model.User, error) {
	owner, err := store.GetOwner(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("looking up owner: %w", err)
	}
	if owner != nil {
		return owner, nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return nil, fmt.Errorf("generating password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	owner, err = store.CreateUser(ctx, database, username, string(hash), model.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("creating owner: %w", err)
	}

	slog.Info("owner account created", "user", owner.Username)
	printOwnerCredentials(username, password)
	return owner, nil
}

// printOwnerCredentials prints the first-run login to stdout.
func printOwnerCredentials(username, password string) {
	fmt.Println("Owner account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("You can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
