package main

import (
	"context"
	"time"

	"github.com/aiblog/aiblog/ai"
	"github.com/aiblog/aiblog/config"
	"github.com/aiblog/aiblog/models"
	"github.com/aiblog/aiblog/routes"
	"github.com/aiblog/aiblog/tasks"
	"github.com/aiblog/aiblog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Comment{})

	rdb := utils.NewRedisClient(cfg)
	broker := tasks.NewBroker(rdb)

	client := ai.NewClient(ai.Config{
		APIKey:      cfg.AIAPIKey,
		Model:       cfg.AIModel,
		BaseURL:     cfg.AIBaseURL,
		Timeout:     time.Duration(cfg.AIRequestTimeoutSec) * time.Second,
		MaxAttempts: cfg.ModerationMaxAttempts,
		RetryDelay:  time.Duration(cfg.ModerationRetryDelaySec) * time.Second,
	}, utils.Sugar)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker := tasks.NewWorker(db, broker, client, time.Duration(cfg.WorkerPollIntervalSec)*time.Second, utils.Sugar)
	go worker.Run(workerCtx)

	r := routes.SetupRouter(db, client, broker)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, stopWorker); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
