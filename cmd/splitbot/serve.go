package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/susu3304/splitbot/internal/api"
	"github.com/susu3304/splitbot/internal/bot"
	"github.com/susu3304/splitbot/internal/commands"
	"github.com/susu3304/splitbot/internal/config"
	"github.com/susu3304/splitbot/internal/db"
	"github.com/susu3304/splitbot/internal/logging"
	"github.com/susu3304/splitbot/internal/settle"
)

func newServeCommand() *cobra.Command {
	var noBot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, noBot)
		},
	}

	cmd.Flags().BoolVar(&noBot, "no-bot", false, "serve only the HTTP API")

	return cmd
}

func runServe(ctx context.Context, noBot bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !noBot {
		if err := cfg.ValidateBot(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// History is optional; without a database nothing is persisted.
	var (
		history commands.History
		store   api.Store
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		history, store = database, database
		logger.Info("settlement history enabled")
	}

	solver := settle.NewSolver(settle.Options{
		Timeout:  cfg.SolveTimeout,
		MaxExact: cfg.MaxExact,
		Logger:   logger.Named("settle"),
	})

	g, ctx := errgroup.WithContext(ctx)

	if !noBot {
		handler := commands.NewHandler(solver, history, cfg.CurrencySymbol, logger.Named("commands"))
		discordBot, err := bot.New(cfg.DiscordToken, handler, logger.Named("bot"))
		if err != nil {
			return err
		}
		if err := discordBot.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return discordBot.Stop()
		})
	}

	apiServer := api.New(cfg, solver, store, logger.Named("api"))
	g.Go(func() error {
		return apiServer.Run(ctx)
	})

	err = g.Wait()
	logger.Info("shut down", zap.Error(err))
	return err
}
