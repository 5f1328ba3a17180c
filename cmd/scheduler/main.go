package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"soldi/internal/amqp"
	"soldi/internal/config"
	"soldi/internal/core"
	applog "soldi/internal/log"
	"soldi/internal/services"
	"soldi/internal/storage"
)

// ruleConcurrency bounds how many rules are materialized at once.
const ruleConcurrency = 4

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentScheduler})
	applog.SetDefault(logger)

	logger.Info("Starting scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	generator := services.NewGenerator(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AMQP is optional; with it configured the scheduler also consumes the
	// transaction events the API publishes and logs them for traceability.
	if cfg.AMQPURL != "" {
		events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event consumption", "error", err)
		} else {
			defer events.Close()
			go func() {
				if err := events.ConsumeTransactionCreated(ctx, logTransactionCreated); err != nil && ctx.Err() == nil {
					logger.Error("Transaction event consumption stopped", "error", err)
				}
			}()
			logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue)
		}
	}

	logger.Info("Scheduler configured",
		"interval", cfg.SchedulerInterval,
		"horizon_days", cfg.HorizonDays,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.SchedulerInterval)
	defer ticker.Stop()

	// Run an initial pass on startup
	runPass(ctx, repo, generator, cfg.HorizonDays)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runPass(ctx, repo, generator, cfg.HorizonDays)
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	logger.Info("Scheduler shutdown complete")
}

// logTransactionCreated records a consumed ledger event. The transaction and
// instance rows already live in the database; this is an operational trail.
func logTransactionCreated(msg *amqp.TransactionCreatedMessage) error {
	slog.Info("Transaction event received",
		"transaction_id", msg.TransactionID,
		"instance_id", msg.InstanceID,
		"rule_id", msg.RuleID,
		"card_id", msg.CardID,
		"amount", msg.Amount,
		"date", msg.Date)
	return nil
}

// runPass sweeps overdue instances for all users, then extends the
// materialized horizon of every active rule.
func runPass(ctx context.Context, repo *storage.Repository, generator *services.Generator, horizonDays int) {
	swept, err := repo.Queries().MarkOverdueAll(ctx, core.Today())
	if err != nil {
		slog.ErrorContext(ctx, "Overdue sweep failed", "error", err)
	} else if swept > 0 {
		slog.InfoContext(ctx, "Overdue sweep complete", "count", swept)
	}

	rules, err := repo.Queries().ListActiveRules(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list active rules", "error", err)
		return
	}

	var generated int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ruleConcurrency)
	results := make([]int, len(rules))
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			n, err := generator.Generate(gctx, rule, horizonDays)
			if err != nil {
				slog.ErrorContext(gctx, "Instance generation failed",
					"rule_id", rule.ID, "error", err)
				return nil // keep going for the other rules
			}
			results[i] = n
			return nil
		})
	}
	_ = g.Wait()
	for _, n := range results {
		generated += int64(n)
	}

	slog.InfoContext(ctx, "Generation pass complete",
		"rules", len(rules),
		"instances_created", generated)
}
