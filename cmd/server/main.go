package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"reactify-service/internal/config"
	"reactify-service/internal/repository/postgresql"
	"reactify-service/internal/service"
	httptransport "reactify-service/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
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

	jobSvc := service.NewJobService(repo, queue, notifier)
	handler := httptransport.NewHandler(jobSvc, notifier)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httptransport.Routes(handler),
	}

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	log.Println("server stopped")
}
