package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "keyword_responder",
	Short: "Rule-based chat responder over HTTP",
	Long: `Keyword Responder answers short messages by matching them against a
fixed set of keyword patterns. It also evaluates simple arithmetic and
tells the current time and date.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		app := fx.New(
			fx.NopLogger,
			fx.Supply(cfg),
			fx.Provide(
				provideLogger,
				provideStore,
				provideServer,
			),
			fx.Invoke(func(*echo.Echo) {}),
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Print a single reply for message",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Only warnings go to stderr unless debugging
		logger := NewLogger(os.Stderr, cfg.Debug)
		if !cfg.Debug {
			logger = logger.Level(zerolog.WarnLevel)
		}
		store, err := NewKnowledgeStore(cfg.KnowledgeFile, logger, WithStoreLooseMatching(cfg.LooseMatching))
		if err != nil {
			return err
		}

		h := &handlers{store: store, logger: logger}
		fmt.Fprintln(cmd.OutOrStdout(), h.reply(strings.Join(args, " ")))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, askCmd)
}

func provideLogger(cfg Config) zerolog.Logger {
	return NewLogger(os.Stdout, cfg.Debug)
}

func provideStore(lc fx.Lifecycle, cfg Config, logger zerolog.Logger) (*KnowledgeStore, error) {
	store, err := NewKnowledgeStore(cfg.KnowledgeFile, logger, WithStoreLooseMatching(cfg.LooseMatching))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize knowledge store: %w", err)
	}

	if !cfg.WatchKnowledge || cfg.KnowledgeFile == "" {
		return store, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// Start file watcher in background
			go func() {
				defer close(done)
				if err := store.WatchFiles(ctx); err != nil {
					logger.Error().Err(err).Msg("file watcher stopped")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})

	return store, nil
}

func provideServer(
	lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg Config, store *KnowledgeStore, logger zerolog.Logger,
) *echo.Echo {
	e := NewServer(store, logger, cfg.WatchKnowledge)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info().Str("addr", cfg.Addr()).Msg("Keyword Responder started")
			go func() {
				if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					// Stop the app through fx so OnStop hooks still run
					logger.Error().Err(err).Msg("server error")
					if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
						logger.Error().Err(err).Msg("shutdown failed")
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			return e.Shutdown(ctx)
		},
	})

	return e
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
