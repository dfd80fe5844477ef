// ABOUTME: Entry point for the ally chat synchronization server
// ABOUTME: Wires config, logger, tree store, identity resolver, and HTTP API

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/wachichaw/allychat/internal/api"
	"github.com/wachichaw/allychat/internal/chat"
	"github.com/wachichaw/allychat/internal/config"
	"github.com/wachichaw/allychat/internal/identity"
	"github.com/wachichaw/allychat/internal/roster"
	"github.com/wachichaw/allychat/internal/rtdb"
)

// Version is set at build time.
var version = "dev"

// getConfigPath returns the path to the config file.
// Priority: ALLY_CONFIG env var > XDG_CONFIG_HOME/ally/server.yaml > ~/.config/ally/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ALLY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "ally", "server.yaml")
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = getConfigPath()
	}

	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when no file
// exists at the default location.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	resolver := buildResolver(cfg.Identity, logger)

	chats := chat.NewService(store, logger)
	rosterSvc := roster.New(chats, resolver, logger)
	handler := api.NewHandler(chats, rosterSvc, logger)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold connections open
	}

	color.Cyan("ally-chat %s", version)
	color.Green("listening on %s (store: %s, identity: %s)",
		cfg.Server.Addr, cfg.Store.Backend, cfg.Identity.Mode)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg config.StoreConfig, logger *slog.Logger) (rtdb.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return rtdb.NewSQLiteStore(cfg.Path, logger)
	default:
		return rtdb.NewMemoryStore(logger), nil
	}
}

func buildResolver(cfg config.IdentityConfig, logger *slog.Logger) identity.Resolver {
	if cfg.Mode == "http" {
		return identity.NewHTTPResolver(cfg.BaseURL, cfg.Timeout, logger)
	}
	users := make([]identity.User, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		users = append(users, identity.User{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			AccountType: u.AccountType,
		})
	}
	return identity.NewStaticResolver(users)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
