package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"reactify-service/internal/config"
	"reactify-service/internal/convert"
	"reactify-service/internal/normalize"
	"reactify-service/internal/platform"
	"reactify-service/internal/repository/postgresql"
	"reactify-service/internal/scraper"
	"reactify-service/internal/service"
	"reactify-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireAIKey(); err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	repo := postgresql.NewJobRepository(pool)
	queue := service.NewRedisQueue(
		rdb,
		cfg.ProcessingMapKey,
		service.Lane{QueueKey: cfg.QueueKey + ":low", ProcessingKey: cfg.ProcessingKey + ":low"},
		service.Lane{QueueKey: cfg.QueueKey + ":normal", ProcessingKey: cfg.ProcessingKey + ":normal"},
		service.Lane{QueueKey: cfg.QueueKey + ":high", ProcessingKey: cfg.ProcessingKey + ":high"},
	)
	notifier := service.NewNotifier(rdb, cfg.EventsPrefix)

	// Reaper: requeue ids abandoned in processing lists and fail jobs
	// stuck in running after a worker crash.
	go worker.NewReaper(queue, repo, 30*time.Second, cfg.StaleJobAfter).Run(ctx)

	requester, err := convert.NewRequester(cfg.AIAPIKey, cfg.AIBaseURL,
		convert.WithModel(cfg.AIModel),
		convert.WithTimeout(cfg.AITimeout),
	)
	if err != nil {
		log.Fatalf("converter: %v", err)
	}

	adapters := scraper.NewSet(scraper.NewFetcher(cfg.FetchTimeout))
	processor := worker.NewProcessor(repo, platform.Detect, adapters, normalize.New(), requester, notifier)
	poolWorkers := worker.NewPool(queue, processor, cfg.Workers)

	log.Printf("worker started: workers=%d redis_addr=%s queue_key=%s model=%s",
		cfg.Workers, cfg.RedisAddr, cfg.QueueKey, cfg.AIModel)
	poolWorkers.Run(ctx)

	log.Println("worker stopped")
}
