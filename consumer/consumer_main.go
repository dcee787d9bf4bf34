package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/autonmap/scan-orchestrator/config"
	"github.com/autonmap/scan-orchestrator/consumer/worker"
	"github.com/autonmap/scan-orchestrator/executor"
	infraPkg "github.com/autonmap/scan-orchestrator/infra"
	"github.com/autonmap/scan-orchestrator/repository"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nmapExecutor := executor.NewNmapExecutor(cfg.EnvConfig)

	scanConsumer := worker.NewScanConsumer(infra.RabbitMQ.Channel, infra, repo, nmapExecutor, cfg.EnvConfig.Scanner.WorkerCount)
	if err := scanConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Scan consumer: %v", err)
		log.Fatalf("Failed to start Scan consumer: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	infra.RabbitMQ.Close()
	infra.Logger.Shutdown(context.Background())
	infra.Logger.InfoWithContextf(context.Background(), "Consumer exited properly")
}
