package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5"

	"carelink/services/api/internal/archive"
	"carelink/services/api/internal/config"
	"carelink/services/api/internal/healthexport"
	"carelink/services/api/internal/lock"
	"carelink/services/api/internal/store"
)

type Handler struct {
	store              *store.Postgres
	importer           *healthexport.Importer
	locker             lock.Locker
	archiveStore       archive.Store
	webhook            *importWebhookNotifier
	metrics            *apiMetrics
	rateLimiter        *apiRateLimiter
	corsAllowedOrigins []string
	adminAPIKey        string
	ingestAPIKey       string
	exportTokenSecret  string
	exportTokenTTL     time.Duration
	maxUploadBytes     int64
	maxArchiveBytes    int64
	runRetentionDays   int
}

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func NewHandler(
	db *store.Postgres,
	locker lock.Locker,
	archiveStore archive.Store,
	reportingLoc *time.Location,
	cfg config.Config,
) *Handler {
	metrics := newAPIMetrics()

	return &Handler{
		store:              db,
		importer:           healthexport.NewImporter(db, reportingLoc),
		locker:             locker,
		archiveStore:       archiveStore,
		webhook:            newImportWebhookNotifier(cfg.WebhookURL, cfg.WebhookAuthHeader),
		metrics:            metrics,
		rateLimiter:        newAPIRateLimiter(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, &metrics.rateLimitedTotal),
		corsAllowedOrigins: cfg.CORSAllowedOrigins,
		adminAPIKey:        cfg.AdminAPIKey,
		ingestAPIKey:       cfg.IngestAPIKey,
		exportTokenSecret:  cfg.ExportTokenSecret,
		exportTokenTTL:     time.Duration(cfg.ExportTokenTTLSeconds) * time.Second,
		maxUploadBytes:     cfg.MaxUploadBytes,
		maxArchiveBytes:    cfg.MaxArchiveBytes,
		runRetentionDays:   cfg.RunRetentionDays,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	if h.rateLimiter != nil {
		r.Use(h.rateLimiter.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CareLink-Key", "X-CareLink-Admin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	r.Get("/metrics", h.metrics.handleMetrics)
	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.With(h.requireWriteAccess).Post("/imports", h.startImport)
			r.Get("/imports", h.listImports)
			r.Get("/imports/{importID}", h.getImport)
			r.Get("/summaries", h.listSummaries)
			r.Get("/exports/{importID}", h.downloadExport)
		})
		r.With(h.requireAdminAccess).Post("/maintenance/cleanup", h.cleanupExpiredRuns)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startImport runs one import end-to-end: acquire the user's lock, stream the
// body through the pipeline, archive the raw document when it fits the spool
// cap, and hand back the report.
func (h *Handler) startImport(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !userIDPattern.MatchString(userID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	release, err := h.locker.Acquire(r.Context(), userID)
	if errors.Is(err, lock.ErrHeld) {
		h.metrics.lockConflictsTotal.Add(1)
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an import for this user is already running"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "import lock unavailable"})
		return
	}
	defer release(r.Context())

	h.metrics.importsStartedTotal.Add(1)

	spool := newCappedSpool(h.maxArchiveBytes)
	body := io.TeeReader(http.MaxBytesReader(w, r.Body, h.maxUploadBytes), spool)

	result, err := h.importer.Run(r.Context(), userID, body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("export exceeds upload limit of %d bytes", h.maxUploadBytes),
			})
			return
		}

		var structural *healthexport.StructuralError
		if errors.As(err, &structural) {
			h.metrics.importsFailedTotal.Add(1)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": structural.Reason,
				"run":   result.Run,
			})
			return
		}

		log.Printf("import persistence failed user=%s err=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "import failed"})
		return
	}

	h.metrics.importsCompletedTotal.Add(1)
	h.metrics.entriesImportedTotal.Add(int64(result.Run.Report.Imported))
	h.metrics.entriesSkippedTotal.Add(int64(result.Run.Report.SkippedTotal()))
	h.metrics.entriesFailedTotal.Add(int64(result.Run.Report.FailedTotal()))
	h.metrics.summariesUpsertedTotal.Add(int64(len(result.Summaries)))

	run := result.Run
	run.ArchiveObjectKey = h.archiveExport(r.Context(), userID, run.ID, spool)

	exportToken := ""
	if run.ArchiveObjectKey != "" && h.hasExportTokenSecret() {
		token, err := h.signExportToken(userID, run.ID, time.Now().UTC().Add(h.exportTokenTTL))
		if err == nil {
			exportToken = token
		}
	}

	if h.webhook.enabled() {
		go h.deliverWebhook(run)
	}

	response := map[string]any{
		"run":               run,
		"summariesUpserted": len(result.Summaries),
	}
	if exportToken != "" {
		response["exportToken"] = exportToken
	}
	writeJSON(w, http.StatusOK, response)
}

// archiveExport writes the spooled raw document to the archive and links it to
// the run. Archive failures never fail the import; the summaries are already
// durable.
func (h *Handler) archiveExport(ctx context.Context, userID, runID string, spool *cappedSpool) string {
	if spool.Overflowed() {
		log.Printf("export archive skipped (over spool cap) user=%s run=%s", userID, runID)
		return ""
	}
	if spool.Len() == 0 {
		return ""
	}

	objectKey := "exports/" + userID + "/" + time.Now().UTC().Format("2006/01/02") + "/" + runID + ".xml"
	if err := h.archiveStore.StoreExport(ctx, objectKey, spool.Bytes()); err != nil {
		if !errors.Is(err, archive.ErrNotConfigured) {
			h.metrics.archiveErrorsTotal.Add(1)
			log.Printf("export archive failed user=%s run=%s err=%v", userID, runID, err)
		}
		return ""
	}

	if err := h.store.SetImportArchiveKey(ctx, runID, objectKey); err != nil {
		log.Printf("archive key update failed run=%s err=%v", runID, err)
	}
	return objectKey
}

func (h *Handler) deliverWebhook(run healthexport.ImportRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := h.webhook.notifyImportCompleted(ctx, run); err != nil {
		h.metrics.webhookErrorsTotal.Add(1)
		log.Printf("import webhook delivery failed run=%s err=%v", run.ID, err)
	}
}

func (h *Handler) listSummaries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !userIDPattern.MatchString(userID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	filter := store.SummaryFilter{
		From:   strings.TrimSpace(r.URL.Query().Get("from")),
		To:     strings.TrimSpace(r.URL.Query().Get("to")),
		Metric: strings.TrimSpace(r.URL.Query().Get("metric")),
	}

	for _, day := range []string{filter.From, filter.To} {
		if day == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", day); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from/to must be YYYY-MM-DD"})
			return
		}
	}
	if filter.Metric != "" && !healthexport.KnownMetric(filter.Metric) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown metric: " + filter.Metric})
		return
	}

	summaries, err := h.store.ListDailySummaries(r.Context(), userID, filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "summary lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

func (h *Handler) listImports(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !userIDPattern.MatchString(userID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-100"})
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListImportRuns(r.Context(), userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "import lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	importID := chi.URLParam(r, "importID")

	run, err := h.store.GetImportRun(r.Context(), userID, importID)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (h *Handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	importID := chi.URLParam(r, "importID")

	claims, err := h.verifyExportToken(r.URL.Query().Get("token"))
	if err != nil || claims.UserID != userID || claims.ImportID != importID {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	run, err := h.store.GetImportRun(r.Context(), userID, importID)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	if run.ArchiveObjectKey == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archived export for this import"})
		return
	}

	body, err := h.archiveStore.LoadExport(r.Context(), run.ArchiveObjectKey)
	if err != nil {
		if errors.Is(err, archive.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "export archive unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to load export"})
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) cleanupExpiredRuns(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.CleanupExpiredRuns(r.Context(), h.runRetentionDays)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	for _, objectKey := range result.DeletedArchiveKeys {
		err := h.archiveStore.DeleteObject(r.Context(), objectKey)
		if err != nil && !errors.Is(err, archive.ErrNotConfigured) {
			result.FailedObjectDelete++
			log.Printf("failed to delete archived export key=%s err=%v", objectKey, err)
		}
	}

	h.metrics.cleanupRunsTotal.Add(1)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) requireWriteAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(h.ingestAPIKey) == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := strings.TrimSpace(r.Header.Get("X-CareLink-Key"))
		if provided == h.ingestAPIKey {
			next.ServeHTTP(w, r)
			return
		}

		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
}

func (h *Handler) requireAdminAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(h.adminAPIKey) == "" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin endpoints disabled"})
			return
		}

		provided := strings.TrimSpace(r.Header.Get("X-CareLink-Admin"))
		if provided == h.adminAPIKey {
			next.ServeHTTP(w, r)
			return
		}

		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "import not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
}
