package api

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type apiMetrics struct {
	startedAtUnix          int64
	importsStartedTotal    atomic.Int64
	importsCompletedTotal  atomic.Int64
	importsFailedTotal     atomic.Int64
	entriesImportedTotal   atomic.Int64
	entriesSkippedTotal    atomic.Int64
	entriesFailedTotal     atomic.Int64
	summariesUpsertedTotal atomic.Int64
	lockConflictsTotal     atomic.Int64
	rateLimitedTotal       atomic.Int64
	archiveErrorsTotal     atomic.Int64
	webhookErrorsTotal     atomic.Int64
	cleanupRunsTotal       atomic.Int64
}

func newAPIMetrics() *apiMetrics {
	return &apiMetrics{
		startedAtUnix: time.Now().Unix(),
	}
}

func (m *apiMetrics) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	uptimeSeconds := time.Now().Unix() - m.startedAtUnix
	_, _ = fmt.Fprintf(w, "# HELP carelink_uptime_seconds Process uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "carelink_uptime_seconds %d\n", uptimeSeconds)

	_, _ = fmt.Fprintf(w, "# HELP carelink_imports_started_total Import runs started.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_imports_started_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_imports_started_total %d\n", m.importsStartedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_imports_completed_total Import runs completed.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_imports_completed_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_imports_completed_total %d\n", m.importsCompletedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_imports_failed_total Import runs failed structurally.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_imports_failed_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_imports_failed_total %d\n", m.importsFailedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_entries_imported_total Export entries normalized and aggregated.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_entries_imported_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_entries_imported_total %d\n", m.entriesImportedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_entries_skipped_total Export entries skipped (unknown type, unit mismatch).\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_entries_skipped_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_entries_skipped_total %d\n", m.entriesSkippedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_entries_failed_total Export entries that failed parsing.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_entries_failed_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_entries_failed_total %d\n", m.entriesFailedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_summaries_upserted_total Daily summaries written to storage.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_summaries_upserted_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_summaries_upserted_total %d\n", m.summariesUpsertedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_lock_conflicts_total Imports rejected because the user's lock was held.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_lock_conflicts_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_lock_conflicts_total %d\n", m.lockConflictsTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_rate_limited_total Requests rejected due to rate limiting.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_rate_limited_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_rate_limited_total %d\n", m.rateLimitedTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_archive_errors_total Raw export archive failures.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_archive_errors_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_archive_errors_total %d\n", m.archiveErrorsTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_webhook_errors_total Import webhook delivery failures.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_webhook_errors_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_webhook_errors_total %d\n", m.webhookErrorsTotal.Load())

	_, _ = fmt.Fprintf(w, "# HELP carelink_cleanup_runs_total Retention cleanup runs executed.\n")
	_, _ = fmt.Fprintf(w, "# TYPE carelink_cleanup_runs_total counter\n")
	_, _ = fmt.Fprintf(w, "carelink_cleanup_runs_total %d\n", m.cleanupRunsTotal.Load())
}
