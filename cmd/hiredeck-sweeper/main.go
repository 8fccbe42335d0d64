package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hiredeck/hiredeck/pkg/billing"
)

var (
	dbURL    = flag.String("db-url", getEnv("HIREDECK_POSTGRES_URL", "postgres://localhost/hiredeck?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "*/15 * * * *", "Cron schedule for the trial expiry sweep")
	runOnce  = flag.Bool("run-once", false, "Run the sweep once and exit")
	logLevel = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	sweeper := billing.NewSweeper(db)

	if *runOnce {
		if err := sweep(sweeper, logger); err != nil {
			logger.Fatalf("Sweep failed: %v", err)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if err := sweep(sweeper, logger); err != nil {
			logger.Errorf("Sweep failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule sweep: %v", err)
	}

	c.Start()
	logger.Infof("Trial sweeper started with schedule %q", *schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cronCtx := c.Stop()
	<-cronCtx.Done()
	logger.Info("Trial sweeper stopped")
}

func sweep(sweeper *billing.Sweeper, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := sweeper.ExpireTrials(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		logger.Infof("Expired %d organization trials", expired)
	} else {
		logger.Debug("No trials to expire")
	}
	return nil
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
