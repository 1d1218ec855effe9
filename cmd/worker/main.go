package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/app"
	"clubadmin/internal/archive"
	"clubadmin/internal/config"
	"clubadmin/internal/dashboard"
	"clubadmin/internal/session"
	"clubadmin/internal/store"
)

// Worker keeps the shared cache fresh and archives period snapshots.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}
	periods, err := parsePeriods(cfg.SnapshotPeriods)
	if err != nil {
		log.Fatalf("SNAPSHOT_PERIODS: %v", err)
	}

	backends, err := app.OpenBackends(cfg)
	if err != nil {
		log.Fatalf("backends: %v", err)
	}
	defer backends.Close()

	db, err := store.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("WARNING: db not reachable, snapshots disabled: %v", err)
		db = nil
	}
	defer db.Close()

	client := apiclient.New(cfg.UpstreamURL, cfg.UpstreamTimeout)
	w := &worker{
		svc:     dashboard.NewService(client, backends.Cache, dashboard.Options{Location: loc}),
		cache:   backends.Cache,
		periods: periods,
		auth: &serviceAuth{
			mgr:      session.NewManager(session.NewMemoryStore(), client, cfg.SessionTTL),
			username: cfg.WorkerUsername,
			password: cfg.WorkerPassword,
		},
	}
	if cfg.WorkerUsername == "" {
		log.Println("WARNING: WORKER_USERNAME not set, polling and snapshots disabled")
	}
	if db != nil {
		repo := archive.NewRepository(db.Client)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("snapshot schema: %v", err)
		}
		w.archive = repo
	}

	messages, err := backends.Queue.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	sched := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := sched.AddFunc(cfg.SnapshotSchedule, func() { w.snapshot(ctx) }); err != nil {
		log.Fatalf("SNAPSHOT_SCHEDULE %q: %v", cfg.SnapshotSchedule, err)
	}
	sched.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for msg := range messages {
			w.handle(ctx, msg)
		}
	}()
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		w.refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.refresh(ctx)
			}
		}
	}()

	log.Printf("worker started: refresh every %s, snapshots %q for %v", cfg.RefreshInterval, cfg.SnapshotSchedule, cfg.SnapshotPeriods)
	wg.Wait()
	<-sched.Stop().Done()
	log.Println("worker stopped")
}
