package main

import (
	"context"
	"errors"
	"log"
	"time"

	"carelink/services/api/internal/archive"
	"carelink/services/api/internal/store"
)

func startMaintenanceLoops(
	ctx context.Context,
	db *store.Postgres,
	archiveStore archive.Store,
	cleanupInterval time.Duration,
	retentionDays int,
) {
	if cleanupInterval > 0 {
		go runCleanupLoop(ctx, db, archiveStore, cleanupInterval, retentionDays)
	}
}

func runCleanupLoop(
	ctx context.Context,
	db *store.Postgres,
	archiveStore archive.Store,
	interval time.Duration,
	retentionDays int,
) {
	runCleanupCycle(ctx, db, archiveStore, retentionDays)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCleanupCycle(ctx, db, archiveStore, retentionDays)
		}
	}
}

func runCleanupCycle(
	ctx context.Context,
	db *store.Postgres,
	archiveStore archive.Store,
	retentionDays int,
) {
	cycleCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	result, err := db.CleanupExpiredRuns(cycleCtx, retentionDays)
	if err != nil {
		log.Printf("auto-cleanup failed: %v", err)
		return
	}

	failures := 0
	for _, objectKey := range result.DeletedArchiveKeys {
		err := archiveStore.DeleteObject(cycleCtx, objectKey)
		if err != nil && !errors.Is(err, archive.ErrNotConfigured) {
			failures++
			log.Printf("auto-cleanup failed deleting archived export key=%s err=%v", objectKey, err)
		}
	}

	log.Printf(
		"auto-cleanup completed runs=%d archiveObjects=%d failures=%d",
		result.DeletedRuns,
		len(result.DeletedArchiveKeys),
		failures,
	)
}
