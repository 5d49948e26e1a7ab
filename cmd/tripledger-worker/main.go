package main

import (
	"context"
	"os"

	"tripledger/internal/amqp"
	"tripledger/internal/cli"
	"tripledger/internal/export"
	"tripledger/internal/export/google"
	"tripledger/internal/export/memory"
	"tripledger/internal/log"
	"tripledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	logger.Info("Starting tripledger-worker")

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	var (
		writer  export.ExpenseWriter
		remover export.ExpenseRemover
	)
	switch cfg.ExportBackend {
	case "sheets":
		client, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		writer, remover = client, client
		logger.Info("Google Sheets export initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		mem := memory.New()
		writer, remover = mem, mem
		logger.Info("In-memory export initialized", "backend", cfg.ExportBackend)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(store, writer, remover, logger.Logger)

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	go func() {
		if err := exportWorker.Run(runCtx, amqpClient); err != nil && err != context.Canceled {
			logger.Error("Event consumption failed", log.FieldError, err.Error())
		}
	}()

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped gracefully")
}
