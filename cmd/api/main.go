package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/app"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/config"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/drafts"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/events"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/export"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/gitrepo"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/logger"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/search"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/store"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/util"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogFilePath, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.Pool{
		MaxOpen: cfg.DBMaxOpenConns,
		MaxIdle: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, store.Migrations()); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatal("failed to create repos dir", zap.Error(err))
	}

	deps := app.Deps{
		Pages:    store.NewPostgresStore(db),
		Versions: gitrepo.New(cfg.ReposDir),
		Logger:   log,
	}

	var draftStore *drafts.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		draftStore, err = drafts.NewRedisStore(cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer draftStore.Close()
		deps.Drafts = draftStore
		log.Info("draft autosave enabled")
	} else {
		log.Info("draft autosave disabled, REDIS_URL is empty")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), log)
	deps.Search = searchService

	var archive export.Archiver
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioArchive, err := export.NewArchive(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatal("object storage setup failed", zap.Error(err))
		}
		if err := minioArchive.EnsureBucket(ctx); err != nil {
			log.Warn("object storage bucket unavailable, published pages are not archived", zap.Error(err))
		} else {
			archive = minioArchive
		}
	}
	deps.Publisher = export.NewService(archive, log)

	var bus *events.Bus
	if strings.TrimSpace(cfg.NATSURL) != "" {
		bus, err = events.Connect(cfg.NATSURL, util.NewID("api"), log)
		if err != nil {
			log.Fatal("nats connection failed", zap.Error(err))
		}
		defer bus.Close()
		deps.Events = bus
	}

	service := app.NewService(cfg, deps)
	if bus != nil {
		if _, err := bus.Subscribe(service.HandlePageEvent); err != nil {
			log.Fatal("subscribe to page events failed", zap.Error(err))
		}
	}
	go searchService.ReindexAll(ctx, service)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("page builder API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	service.Shutdown(shutdownCtx)
}
