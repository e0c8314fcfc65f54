package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"carelink/services/api/internal/api"
	"carelink/services/api/internal/archive"
	"carelink/services/api/internal/config"
	"carelink/services/api/internal/lock"
	"carelink/services/api/internal/store"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	var locker lock.Locker
	redisLocker, err := lock.NewRedisLocker(cfg.RedisAddr, time.Duration(cfg.ImportLockTTLSeconds)*time.Second)
	if err != nil {
		log.Printf("import lock unavailable (%v), continuing without cross-process locking", err)
		locker = lock.NewNoopLocker()
	} else {
		locker = redisLocker
	}
	defer locker.Close()

	var archiveStore archive.Store
	if cfg.S3Bucket != "" {
		s3Store, err := archive.NewS3Store(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		if err != nil {
			log.Printf("export archive unavailable (%v), continuing without archival", err)
			archiveStore = archive.NewNoopStore()
		} else {
			archiveStore = s3Store
		}
	} else {
		archiveStore = archive.NewNoopStore()
	}
	defer archiveStore.Close()

	reportingLoc, err := time.LoadLocation(cfg.ReportingTimeZone)
	if err != nil {
		log.Printf("invalid reporting time zone %q (%v), falling back to UTC", cfg.ReportingTimeZone, err)
		reportingLoc = time.UTC
	}

	handler := api.NewHandler(db, locker, archiveStore, reportingLoc, cfg)
	router := handler.Router()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startMaintenanceLoops(
		shutdownCtx,
		db,
		archiveStore,
		time.Duration(cfg.AutoCleanupIntervalMinutes)*time.Minute,
		cfg.RunRetentionDays,
	)

	go func() {
		log.Printf("carelink api listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-shutdownCtx.Done()
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxTimeout); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
