package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"oj-judge/core"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the server configuration file")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL, int32(concurrency)+2)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	problems := core.NewProblemSet(cfg)
	jobs := core.NewPgJobStore(db)
	queue := core.NewJobQueue(core.NewRedisQueue(redisClient))
	sandbox := core.NewSandbox()
	executor := core.NewExecutor(sandbox, jobs, cfg.SubmissionDir)

	workerID := core.NewWorkerID()
	hostname, _ := os.Hostname()
	heartbeat := core.NewHeartbeatState(workerID, hostname, concurrency)
	go heartbeat.Start(ctx, redisClient)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if requeued, err := queue.RequeueExpired(ctx); err != nil {
					log.Printf("requeue expired error: %v", err)
				} else if len(requeued) > 0 {
					log.Printf("requeued %d expired jobs", len(requeued))
				}
			}
		}
	}()

	log.Printf("worker %s started on host %s concurrency=%d", workerID, hostname, concurrency)

	processor := core.NewWorkerProcessor(queue, jobs, problems, executor, heartbeat)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(ctx)
		}()
	}
	wg.Wait()
}
