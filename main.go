package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"myhome-publisher/browser"
	"myhome-publisher/config"
	"myhome-publisher/models"
	"myhome-publisher/publisher/myhome"
	"myhome-publisher/services"
	"myhome-publisher/storage"
	"myhome-publisher/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logger := utils.NewLoggerWith(utils.LoggerOptions{
		Level: cfg.LogLevel,
		JSON:  cfg.LogFormat == "json",
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		return 1
	}

	logger.Info("=== myhome publisher starting ===")
	logger.Info("Config: mode %s | listings %s | retries %d | vip %t | purchases %t",
		cfg.Mode, cfg.ListingsDir, cfg.MaxRetries, cfg.VIPAllowed, cfg.EnablePurchases)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, err := storage.NewDescriptorLoader(cfg.DescriptorFile)
	if err != nil {
		logger.Error("Failed to prepare descriptor loader: %v", err)
		return 1
	}

	session, err := browser.NewAcquirer(cfg, logger).Acquire(ctx)
	if err != nil {
		logger.Error("Could not get a browser session: %v", err)
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Closing the browser session: %v", err)
		}
	}()

	publisher := myhome.New(cfg, logger)
	runner := services.NewBatchRunner(cfg, logger, session.Page, loader, publisher)

	summary, runErr := runner.Run(ctx, cfg.ListingsDir)
	if services.IsDescriptorError(runErr) {
		logger.Error("Fix the descriptor or set ON_DESCRIPTOR_ERROR=skip to continue past it")
	}

	writeReports(cfg, logger, summary)

	summarySvc := services.NewSummaryService(logger)
	summarySvc.Print(os.Stdout, summarySvc.Generate(summary))

	if cfg.IsProduction() && cfg.KeepOpen && ctx.Err() == nil {
		fmt.Println("  Browser left open, press Ctrl+C to exit.")
		<-ctx.Done()
	}

	if runErr != nil {
		return 1
	}
	return 0
}

// writeReports stores the run results. Report failures are logged but never
// change the exit status: the listings are already published.
func writeReports(cfg *config.Config, logger *utils.Logger, summary *models.RunSummary) {
	var writers []storage.ResultWriter

	if cfg.ReportCSVPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.ReportCSVPath)
		if err != nil {
			logger.Error("Failed to create CSV report: %v", err)
		} else {
			writers = append(writers, csvWriter)
		}
	}

	var pgWriter *storage.PostgresWriter
	if cfg.RecordToPostgres {
		w, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
		} else {
			pgWriter = w
			writers = append(writers, w)
		}
	}

	for _, w := range writers {
		if err := w.Write(summary.Results); err != nil {
			logger.Error("Report write failed: %v", err)
		}
	}

	if pgWriter != nil {
		stored, err := pgWriter.FetchRun(summary.RunID)
		if err != nil {
			logger.Error("Failed to read the run back from PostgreSQL: %v", err)
		} else {
			logger.Info("Run %s recorded in PostgreSQL (%d rows in submissions)", summary.RunID, len(stored))
		}
	}

	for _, w := range writers {
		if err := w.Close(); err != nil {
			logger.Warn("Closing report: %v", err)
		}
	}
	if cfg.ReportCSVPath != "" {
		logger.Info("Report saved to %s", cfg.ReportCSVPath)
	}
}
