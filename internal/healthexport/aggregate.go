package healthexport

import (
	"sort"
	"time"
)

// methodByKind fixes the reduction per metric kind. Cumulative metrics sum,
// point samples average with the sample count retained, and "current state"
// metrics keep the most recent reading of the day.
//
// TestMethodTableCoversAllKinds asserts this table stays in lockstep with the
// normalizer's metric table.
var methodByKind = map[MetricKind]AggregationMethod{
	MetricSteps:            MethodSum,
	MetricDistance:         MethodSum,
	MetricFlightsClimbed:   MethodSum,
	MetricActiveEnergy:     MethodSum,
	MetricBasalEnergy:      MethodSum,
	MetricHeartRate:        MethodMean,
	MetricRestingHeartRate: MethodMean,
	MetricWeight:           MethodMean,
	MetricBodyMassIndex:    MethodLatest,
	MetricBPSystolic:       MethodMean,
	MetricBPDiastolic:      MethodMean,
	MetricOxygenSaturation: MethodMean,
	MetricBodyTemperature:  MethodMean,
	MetricSleepCore:        MethodSum,
	MetricSleepDeep:        MethodSum,
	MetricSleepREM:         MethodSum,
	MetricSleepAwake:       MethodSum,
	MetricSleepInBed:       MethodSum,
}

// MethodFor returns the fixed aggregation method for a kind.
func MethodFor(kind MetricKind) (AggregationMethod, bool) {
	method, ok := methodByKind[kind]
	return method, ok
}

type bucketKey struct {
	day  string
	kind MetricKind
}

type bucket struct {
	sum       float64
	count     int
	latest    float64
	latestAt  time.Time
	latestSeq int
}

// Aggregator folds one import's observations into per-(day, kind) summaries.
// The calendar day comes from each observation's timestamp converted to the
// single reporting time zone; an interval crossing midnight belongs to the day
// its start falls on.
type Aggregator struct {
	loc     *time.Location
	buckets map[bucketKey]*bucket
	seq     int
}

func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		loc:     loc,
		buckets: make(map[bucketKey]*bucket),
	}
}

func (a *Aggregator) Add(obs Observation) {
	a.seq++
	key := bucketKey{
		day:  obs.Time.In(a.loc).Format("2006-01-02"),
		kind: obs.Kind,
	}

	b, ok := a.buckets[key]
	if !ok {
		b = &bucket{}
		a.buckets[key] = b
	}

	b.sum += obs.Value
	b.count++

	// Later timestamp wins; equal timestamps fall back to input order.
	if b.count == 1 || obs.Time.After(b.latestAt) || (obs.Time.Equal(b.latestAt) && a.seq > b.latestSeq) {
		b.latest = obs.Value
		b.latestAt = obs.Time
		b.latestSeq = a.seq
	}
}

// Summaries reduces every bucket with its kind's fixed method. Output order is
// deterministic: day ascending, then metric.
func (a *Aggregator) Summaries() []DailySummary {
	summaries := make([]DailySummary, 0, len(a.buckets))
	for key, b := range a.buckets {
		method := methodByKind[key.kind]

		value := b.sum
		switch method {
		case MethodMean:
			value = b.sum / float64(b.count)
		case MethodLatest:
			value = b.latest
		}

		summaries = append(summaries, DailySummary{
			Day:         key.day,
			Metric:      key.kind,
			Value:       value,
			SampleCount: b.count,
			Method:      method,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Day != summaries[j].Day {
			return summaries[i].Day < summaries[j].Day
		}
		return summaries[i].Metric < summaries[j].Metric
	})
	return summaries
}
