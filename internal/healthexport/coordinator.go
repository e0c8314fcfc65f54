package healthexport

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunState tracks one import run. Only extraction can fail the whole run;
// every other stage degrades into per-entry tallies.
type RunState string

const (
	StatePending     RunState = "pending"
	StateExtracting  RunState = "extracting"
	StateNormalizing RunState = "normalizing"
	StateAggregating RunState = "aggregating"
	StatePersisting  RunState = "persisting"
	StateCompleted   RunState = "completed"
	StateFailed      RunState = "failed"
)

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ImportReport is the caller-facing outcome of one run.
// Invariant: Total == Imported + sum(Skipped) + sum(Failed).
type ImportReport struct {
	Total      int           `json:"total"`
	Imported   int           `json:"imported"`
	Skipped    []ReasonCount `json:"skipped"`
	Failed     []ReasonCount `json:"failed"`
	DurationMs int64         `json:"duration_ms"`
}

// ImportRun is the persisted record of a run.
type ImportRun struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	State            RunState     `json:"state"`
	Report           ImportReport `json:"report"`
	StructuralReason string       `json:"structuralReason,omitempty"`
	ArchiveObjectKey string       `json:"archiveObjectKey,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// ImportResult is what Run hands back to the API layer.
type ImportResult struct {
	Run       ImportRun
	Summaries []DailySummary
}

// Store is the persistence collaborator. Upserts replace a (user, day, metric)
// summary wholesale so re-imports stay idempotent; the implementation is also
// responsible for serializing the write phase of concurrent same-user imports.
type Store interface {
	UpsertDailySummaries(ctx context.Context, userID string, summaries []DailySummary) error
	RecordImportRun(ctx context.Context, run ImportRun) error
}

// Importer drives extract -> normalize -> aggregate -> persist for one
// uploaded export. One Run is one sequential pipeline; all mutable state is
// per-run, so distinct imports never share anything.
type Importer struct {
	store Store
	loc   *time.Location
}

func NewImporter(store Store, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{store: store, loc: loc}
}

// Run imports one export document for one user. A *StructuralError is
// reflected in the result (state failed, nothing persisted) and returned; any
// other non-nil error is a storage failure.
func (im *Importer) Run(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	startedAt := time.Now()
	run := ImportRun{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     StatePending,
		CreatedAt: startedAt.UTC(),
	}

	counts := make(map[RejectReason]int)
	imported := 0

	extractor := NewExtractor(r)
	aggregator := NewAggregator(im.loc)

	// Extraction and normalization interleave over the lazy stream; the
	// extractor never buffers more than one record.
	run.State = StateExtracting
	for {
		if err := ctx.Err(); err != nil {
			return im.fail(run, startedAt, &StructuralError{Reason: "import canceled", Err: err})
		}

		entry, err := extractor.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var structural *StructuralError
		if errors.As(err, &structural) {
			return im.fail(run, startedAt, structural)
		}
		if err != nil {
			return im.fail(run, startedAt, &StructuralError{Reason: "read failed", Err: err})
		}

		run.State = StateNormalizing
		obs, rejection := Normalize(entry)
		if rejection != nil {
			counts[rejection.Reason]++
			continue
		}

		imported++
		aggregator.Add(obs)
	}
	counts[RejectMalformedEntry] += extractor.Skipped()

	run.State = StateAggregating
	summaries := aggregator.Summaries()

	run.Report = buildReport(imported, counts, time.Since(startedAt))

	run.State = StatePersisting
	if len(summaries) > 0 {
		if err := im.store.UpsertDailySummaries(ctx, userID, summaries); err != nil {
			return nil, err
		}
	}

	run.State = StateCompleted
	run.Report.DurationMs = time.Since(startedAt).Milliseconds()
	if err := im.store.RecordImportRun(ctx, run); err != nil {
		return nil, err
	}

	return &ImportResult{Run: run, Summaries: summaries}, nil
}

// fail finalizes a structurally failed run. Storage is never touched: a
// structurally invalid document must not leave partial writes behind.
func (im *Importer) fail(run ImportRun, startedAt time.Time, structural *StructuralError) (*ImportResult, error) {
	run.State = StateFailed
	run.StructuralReason = structural.Reason
	run.Report = ImportReport{
		Skipped:    []ReasonCount{},
		Failed:     []ReasonCount{},
		DurationMs: time.Since(startedAt).Milliseconds(),
	}
	return &ImportResult{Run: run, Summaries: nil}, structural
}

func buildReport(imported int, counts map[RejectReason]int, elapsed time.Duration) ImportReport {
	report := ImportReport{
		Imported:   imported,
		Skipped:    []ReasonCount{},
		Failed:     []ReasonCount{},
		DurationMs: elapsed.Milliseconds(),
	}

	total := imported
	for reason, count := range counts {
		if count == 0 {
			continue
		}
		total += count
		entry := ReasonCount{Reason: string(reason), Count: count}
		if reason.Skipped() {
			report.Skipped = append(report.Skipped, entry)
		} else {
			report.Failed = append(report.Failed, entry)
		}
	}
	report.Total = total

	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Reason < report.Skipped[j].Reason })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Reason < report.Failed[j].Reason })
	return report
}

// SkippedTotal sums the report's skipped tallies.
func (r ImportReport) SkippedTotal() int {
	total := 0
	for _, entry := range r.Skipped {
		total += entry.Count
	}
	return total
}

// FailedTotal sums the report's failed tallies.
func (r ImportReport) FailedTotal() int {
	total := 0
	for _, entry := range r.Failed {
		total += entry.Count
	}
	return total
}
