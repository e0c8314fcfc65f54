package healthexport

import "time"

// RawEntry is one record lifted out of the export document before any
// normalization. Values are kept as strings until the normalizer classifies
// them; a RawEntry never outlives the import run that produced it.
type RawEntry struct {
	TypeIdentifier string
	Unit           string
	Value          string
	Start          time.Time
	End            time.Time
	SourceName     string
}

// MetricKind is the stable internal vocabulary for health data categories,
// independent of the export's raw type identifier strings.
type MetricKind string

const (
	MetricSteps             MetricKind = "steps"
	MetricDistance          MetricKind = "distance"
	MetricFlightsClimbed    MetricKind = "flights_climbed"
	MetricActiveEnergy      MetricKind = "active_energy"
	MetricBasalEnergy       MetricKind = "basal_energy"
	MetricHeartRate         MetricKind = "heart_rate"
	MetricRestingHeartRate  MetricKind = "resting_heart_rate"
	MetricWeight            MetricKind = "weight"
	MetricBodyMassIndex     MetricKind = "body_mass_index"
	MetricBPSystolic        MetricKind = "blood_pressure_systolic"
	MetricBPDiastolic       MetricKind = "blood_pressure_diastolic"
	MetricOxygenSaturation  MetricKind = "oxygen_saturation"
	MetricBodyTemperature   MetricKind = "body_temperature"
	MetricSleepCore         MetricKind = "sleep_core"
	MetricSleepDeep         MetricKind = "sleep_deep"
	MetricSleepREM          MetricKind = "sleep_rem"
	MetricSleepAwake        MetricKind = "sleep_awake"
	MetricSleepInBed        MetricKind = "sleep_in_bed"
)

// Observation is a normalized health sample. Value is always expressed in the
// canonical unit for its kind, and Time is UTC with the export's original
// offset preserved for display.
type Observation struct {
	Kind         MetricKind
	Value        float64
	Time         time.Time
	OriginalZone *time.Location
	Source       string
}

// AggregationMethod selects how observations of one kind reduce into a daily
// value.
type AggregationMethod string

const (
	MethodSum    AggregationMethod = "sum"
	MethodMean   AggregationMethod = "mean"
	MethodLatest AggregationMethod = "latest"
)

// DailySummary is one reduced value per (day, metric kind). Day is a calendar
// date in the reporting time zone, formatted YYYY-MM-DD.
type DailySummary struct {
	Day         string            `json:"day"`
	Metric      MetricKind        `json:"metric"`
	Value       float64           `json:"value"`
	SampleCount int               `json:"sampleCount"`
	Method      AggregationMethod `json:"method"`
}
