package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acmreport/server/config"
	"acmreport/server/internal/api"
	"acmreport/server/internal/apiclient"
	"acmreport/server/internal/database"
	"acmreport/server/internal/photos"
	"acmreport/server/internal/processor"
	"acmreport/server/internal/queue"
	"acmreport/server/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Initialize photo cache database
	logger.Infof("Using photo cache at: %s", cfg.Photos.CacheDB)
	db, err := database.NewDatabase(cfg.Photos.CacheDB)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Keep the photo cache bounded
	cacheScheduler := scheduler.NewScheduler(db, cfg.PhotoCacheTTL(), cfg.PhotoCachePurgeInterval(), logger)
	cacheScheduler.Start()

	resolver := photos.NewResolver(logger, db, cfg.PhotoFetchTimeout(), cfg.Photos.MaxBytes)

	// Resolve photos in the background as soon as they are set on the draft
	photoQueue := queue.NewPhotoQueue(cfg.Prefetch.QueueSize, logger)
	prefetcher := processor.NewPrefetchProcessor(resolver, photoQueue, cfg, logger)
	prefetcher.Start()
	photoQueue.Start()

	client := apiclient.NewClient(cfg.API.BaseURL, cfg.APITimeout(), logger)
	if !client.Enabled() {
		logger.Warn("ACM_API_URL is not set, analysis submission is disabled")
	}

	handler, err := api.NewHandler(resolver, photoQueue, client, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize handler")
	}

	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	cacheScheduler.Stop()
	prefetcher.Stop()
	if err := photoQueue.Close(); err != nil {
		logger.WithError(err).Error("Failed to close photo queue")
	}
}
