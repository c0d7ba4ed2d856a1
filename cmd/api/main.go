package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	appai "github.com/bryanwahyu/repoguard/internal/application/ai"
	appscans "github.com/bryanwahyu/repoguard/internal/application/scans"
	"github.com/bryanwahyu/repoguard/internal/config"
	domai "github.com/bryanwahyu/repoguard/internal/domain/ai"
	"github.com/bryanwahyu/repoguard/internal/domain/analyst"
	"github.com/bryanwahyu/repoguard/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	aiopenai "github.com/bryanwahyu/repoguard/internal/infra/ai/openai"
	"github.com/bryanwahyu/repoguard/internal/infra/dast"
	mysqlp "github.com/bryanwahyu/repoguard/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/repoguard/internal/infra/db/postgres"
	"github.com/bryanwahyu/repoguard/internal/infra/deploy"
	"github.com/bryanwahyu/repoguard/internal/infra/gitfetch"
	"github.com/bryanwahyu/repoguard/internal/infra/httpserver"
	"github.com/bryanwahyu/repoguard/internal/infra/sast"
	"github.com/bryanwahyu/repoguard/internal/infra/sca"
	minioStore "github.com/bryanwahyu/repoguard/internal/infra/storage"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
	"github.com/bryanwahyu/repoguard/internal/infra/workspace"
	"github.com/bryanwahyu/repoguard/internal/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql default, postgres optional)
	var scanRepo domain.Repository
	var errRepo scanerrors.Repository
	var analystRepo analyst.Repository
	healthChecks := map[string]middleware.HealthChecker{}

	switch cfg.Database.Driver {
	case "", "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		scanRepo = mysqlp.NewScanRepository(db)
		errRepo = mysqlp.NewScanErrorRepository(db)
		analystRepo = mysqlp.NewAnalystRepository(db)
		healthChecks["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		scanRepo = postgresp.NewScanRepository(db)
		errRepo = postgresp.NewScanErrorRepository(db)
		analystRepo = postgresp.NewAnalystRepository(db)
		healthChecks["database"] = &middleware.DatabaseHealthChecker{DB: db}
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}

	// init minio (optional: skip when no endpoint configured)
	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		artifacts = store
	} else {
		log.Println("minio not configured, raw artifacts will not be stored")
	}

	// scan tool runner with configured fallback install dirs
	runner := toolrunner.NewRunner(cfg.Scanner.FallbackBinDirs...)

	sastScanner := sast.NewScanner(runner)
	sastScanner.Timeout = cfg.SASTTimeout()
	scaScanner := sca.NewScanner(runner)
	scaScanner.Timeout = cfg.SCATimeout()

	// dynamic tier: prefer the local nuclei binary, fall back to its image
	nativeNuclei := dast.NewNucleiScanner(runner)
	nativeNuclei.Timeout = cfg.DASTTimeout()
	var urlScanner dast.URLScanner = nativeNuclei
	if _, err := runner.Resolve("nuclei"); err != nil {
		log.Println("nuclei binary not found, using dockerized nuclei")
		dockerized := dast.NewDockerNucleiScanner(runner)
		dockerized.Timeout = cfg.DASTTimeout()
		urlScanner = dockerized
	}

	prober := dast.NewProber()
	deployer := deploy.NewManager(urlScanner)
	orchestrator := dast.NewOrchestrator(prober, dast.NewDetector(prober), urlScanner, deployer)

	fetcher := gitfetch.NewFetcher()
	fetcher.AttemptTimeout = cfg.CloneTimeout()

	// init scan service
	svc := &appscans.Service{
		Workspace: workspace.NewManager(),
		Fetcher:   fetcher,
		SAST:      sastScanner,
		SCA:       scaScanner,
		DAST:      orchestrator,
		Repo:      scanRepo,
		Artifacts: artifacts,
		Errors:    errRepo,
		Clock:     appscans.SystemClock{},
	}

	// ai analyst: remote when a key is configured, local heuristic otherwise
	var aiClient domai.Client
	if cfg.AI.APIKey != "" {
		aiClient = aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	}
	aiSvc := appai.NewService(aiClient, analystRepo)

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if len(cfg.Server.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Server.APIKeys))
	}
	if cfg.Server.RateLimit.Capacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec))
	}

	mux.Get("/healthz", middleware.HealthHandler(healthChecks))
	mux.Get("/readyz", middleware.ReadinessHandler)
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc, aiSvc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
