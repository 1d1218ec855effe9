package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/app"
	"clubadmin/internal/archive"
	"clubadmin/internal/auth"
	"clubadmin/internal/config"
	"clubadmin/internal/dashboard"
	"clubadmin/internal/handler"
	"clubadmin/internal/httpmiddleware"
	"clubadmin/internal/queue"
	"clubadmin/internal/session"
	"clubadmin/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	backends, err := app.OpenBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := store.OpenDB(startCtx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable, snapshots disabled: %v", err)
		db = nil
	}
	defer db.Close()

	var snapshots handler.SnapshotLister
	if db != nil {
		repo := archive.NewRepository(db.Client)
		if err := repo.EnsureSchema(startCtx); err != nil {
			log.Printf("warning: snapshot schema: %v", err)
		}
		snapshots = repo
	}

	// An in-memory queue has no consumer outside this process.
	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = backends.Queue
	}

	client := apiclient.New(cfg.UpstreamURL, cfg.UpstreamTimeout)
	sessions := session.NewManager(backends.Sessions, client, cfg.SessionTTL)
	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	svc := dashboard.NewService(client, backends.Cache, dashboard.Options{Location: loc, Queue: q})

	h := handler.New(svc, sessions, issuer, snapshots)
	if backends.Redis != nil {
		h.AddProbe("redis", backends.Redis.Healthy)
	}
	if db != nil {
		h.AddProbe("db", db.Healthy)
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, httpmiddleware.ClientIP)
	go pruneLimiter(limiter)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(limiter.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.RegisterRoutes(r)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (upstream %s)", cfg.HTTPPort, cfg.UpstreamURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// pruneLimiter drops buckets of clients that went quiet.
func pruneLimiter(l *httpmiddleware.TokenBucket) {
	for range time.Tick(10 * time.Minute) {
		if n := l.Prune(30 * time.Minute); n > 0 {
			log.Printf("rate limiter: pruned %d idle clients", n)
		}
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
