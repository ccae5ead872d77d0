package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"oj-judge/core"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the server configuration file")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "server.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL, 10)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	if err := os.MkdirAll(cfg.SubmissionDir, 0o755); err != nil {
		log.Fatalf("failed to ensure submission dir %s: %v", cfg.SubmissionDir, err)
	}

	problems := core.NewProblemSet(cfg)
	users := core.NewPgUserStore(db)
	contests := core.NewPgContestStore(db)
	jobs := core.NewPgJobStore(db)
	queue := core.NewJobQueue(core.NewRedisQueue(redisClient))
	metrics := core.NewMetricsService(redisClient)

	if err := users.EnsureRoot(ctx); err != nil {
		log.Fatalf("bootstrap root user failed: %v", err)
	}
	knownUsers, err := users.List(ctx)
	if err != nil {
		log.Fatalf("list users for global contest bootstrap failed: %v", err)
	}
	userIDs := make([]int64, len(knownUsers))
	for i, u := range knownUsers {
		userIDs[i] = u.ID
	}
	if err := contests.EnsureGlobal(ctx, problems.AllProblemIDs(), userIDs); err != nil {
		log.Fatalf("bootstrap global contest failed: %v", err)
	}

	intake := core.NewIntake(problems, users, contests, jobs, queue)
	query := core.NewQuery(problems, users, jobs, queue)
	ranking := core.NewRanking(problems, users, contests, jobs)
	entities := core.NewEntities(problems, users, contests)

	server := core.NewServer(intake, query, ranking, entities, metrics, func() {
		os.Exit(0)
	})
	router := core.NewRouter(server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.BindPort)
	log.Printf("starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
