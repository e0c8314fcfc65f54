package store

import "time"

// SummaryRow is one persisted daily summary for one user.
type SummaryRow struct {
	UserID      string    `json:"userId"`
	Day         string    `json:"day"`
	Metric      string    `json:"metric"`
	Value       float64   `json:"value"`
	SampleCount int       `json:"sampleCount"`
	Method      string    `json:"method"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SummaryFilter narrows summary listings. Zero values mean "no bound".
type SummaryFilter struct {
	From   string
	To     string
	Metric string
}

type CleanupResult struct {
	DeletedRuns        int      `json:"deletedRuns"`
	DeletedArchiveKeys []string `json:"-"`
	FailedObjectDelete int      `json:"failedObjectDelete"`
	RetentionDays      int      `json:"retentionDays"`
}
