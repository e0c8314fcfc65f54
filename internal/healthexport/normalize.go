package healthexport

import (
	"fmt"
	"sort"
	"strconv"
)

// unitConversion maps a raw export unit into the canonical unit of a metric
// kind: canonical = raw*Factor + Offset. Factors are fixed and exact; nothing
// here guesses.
type unitConversion struct {
	Factor float64
	Offset float64
}

var identity = unitConversion{Factor: 1}

type metricSpec struct {
	Kind          MetricKind
	CanonicalUnit string
	Units         map[string]unitConversion
}

// metricTable enumerates every export type identifier this service accepts.
// Identifiers absent from the table reject with UnknownType so that format
// drift in the upstream export shows up in import reports instead of
// vanishing.
var metricTable = map[string]metricSpec{
	"HKQuantityTypeIdentifierStepCount": {
		Kind:          MetricSteps,
		CanonicalUnit: "count",
		Units:         map[string]unitConversion{"count": identity},
	},
	"HKQuantityTypeIdentifierDistanceWalkingRunning": {
		Kind:          MetricDistance,
		CanonicalUnit: "km",
		Units: map[string]unitConversion{
			"km": identity,
			"mi": {Factor: 1.609344},
			"m":  {Factor: 0.001},
		},
	},
	"HKQuantityTypeIdentifierFlightsClimbed": {
		Kind:          MetricFlightsClimbed,
		CanonicalUnit: "count",
		Units:         map[string]unitConversion{"count": identity},
	},
	"HKQuantityTypeIdentifierActiveEnergyBurned": {
		Kind:          MetricActiveEnergy,
		CanonicalUnit: "kcal",
		Units: map[string]unitConversion{
			"kcal": identity,
			"Cal":  identity,
			"kJ":   {Factor: 0.2390057},
		},
	},
	"HKQuantityTypeIdentifierBasalEnergyBurned": {
		Kind:          MetricBasalEnergy,
		CanonicalUnit: "kcal",
		Units: map[string]unitConversion{
			"kcal": identity,
			"Cal":  identity,
			"kJ":   {Factor: 0.2390057},
		},
	},
	"HKQuantityTypeIdentifierHeartRate": {
		Kind:          MetricHeartRate,
		CanonicalUnit: "count/min",
		Units:         map[string]unitConversion{"count/min": identity, "bpm": identity},
	},
	"HKQuantityTypeIdentifierRestingHeartRate": {
		Kind:          MetricRestingHeartRate,
		CanonicalUnit: "count/min",
		Units:         map[string]unitConversion{"count/min": identity, "bpm": identity},
	},
	"HKQuantityTypeIdentifierBodyMass": {
		Kind:          MetricWeight,
		CanonicalUnit: "kg",
		Units: map[string]unitConversion{
			"kg": identity,
			"lb": {Factor: 0.45359237},
			"g":  {Factor: 0.001},
			"st": {Factor: 6.35029318},
		},
	},
	"HKQuantityTypeIdentifierBodyMassIndex": {
		Kind:          MetricBodyMassIndex,
		CanonicalUnit: "count",
		Units:         map[string]unitConversion{"count": identity},
	},
	"HKQuantityTypeIdentifierBloodPressureSystolic": {
		Kind:          MetricBPSystolic,
		CanonicalUnit: "mmHg",
		Units:         map[string]unitConversion{"mmHg": identity},
	},
	"HKQuantityTypeIdentifierBloodPressureDiastolic": {
		Kind:          MetricBPDiastolic,
		CanonicalUnit: "mmHg",
		Units:         map[string]unitConversion{"mmHg": identity},
	},
	"HKQuantityTypeIdentifierOxygenSaturation": {
		Kind:          MetricOxygenSaturation,
		CanonicalUnit: "%",
		Units:         map[string]unitConversion{"%": identity},
	},
	"HKQuantityTypeIdentifierBodyTemperature": {
		Kind:          MetricBodyTemperature,
		CanonicalUnit: "degC",
		Units: map[string]unitConversion{
			"degC": identity,
			"degF": {Factor: 5.0 / 9.0, Offset: -160.0 / 9.0},
		},
	},
}

const sleepTypeIdentifier = "HKCategoryTypeIdentifierSleepAnalysis"

// Sleep records carry a category constant instead of a number; the observed
// value is the interval duration in minutes, bucketed per stage.
var sleepStageKinds = map[string]MetricKind{
	"HKCategoryValueSleepAnalysisAsleepCore":        MetricSleepCore,
	"HKCategoryValueSleepAnalysisAsleepDeep":        MetricSleepDeep,
	"HKCategoryValueSleepAnalysisAsleepREM":         MetricSleepREM,
	"HKCategoryValueSleepAnalysisAsleepUnspecified": MetricSleepCore,
	"HKCategoryValueSleepAnalysisAwake":             MetricSleepAwake,
	"HKCategoryValueSleepAnalysisInBed":             MetricSleepInBed,
}

// Kinds returns every metric kind the normalizer can produce, sorted.
func Kinds() []MetricKind {
	seen := map[MetricKind]bool{}
	for _, spec := range metricTable {
		seen[spec.Kind] = true
	}
	for _, kind := range sleepStageKinds {
		seen[kind] = true
	}

	kinds := make([]MetricKind, 0, len(seen))
	for kind := range seen {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// KnownMetric reports whether name is a canonical metric kind.
func KnownMetric(name string) bool {
	for _, kind := range Kinds() {
		if string(kind) == name {
			return true
		}
	}
	return false
}

// Normalize maps one raw entry into a canonical observation or a classified
// rejection. It is pure: all state lives in the static tables above.
func Normalize(entry RawEntry) (Observation, *Rejection) {
	if entry.TypeIdentifier != sleepTypeIdentifier {
		if _, ok := metricTable[entry.TypeIdentifier]; !ok {
			return Observation{}, &Rejection{
				Reason: RejectUnknownType,
				Detail: entry.TypeIdentifier,
			}
		}
	}

	if entry.End.Before(entry.Start) {
		return Observation{}, &Rejection{
			Reason: RejectInvalidInterval,
			Detail: fmt.Sprintf("end %s precedes start %s", entry.End, entry.Start),
		}
	}

	if entry.TypeIdentifier == sleepTypeIdentifier {
		return normalizeSleep(entry)
	}

	spec := metricTable[entry.TypeIdentifier]
	conv, ok := spec.Units[entry.Unit]
	if !ok {
		return Observation{}, &Rejection{
			Reason: RejectUnitMismatch,
			Detail: fmt.Sprintf("unit %q not convertible to %s", entry.Unit, spec.CanonicalUnit),
		}
	}

	raw, err := strconv.ParseFloat(entry.Value, 64)
	if err != nil {
		return Observation{}, &Rejection{
			Reason: RejectValueParse,
			Detail: fmt.Sprintf("value %q is not numeric", entry.Value),
		}
	}

	return observation(entry, spec.Kind, raw*conv.Factor+conv.Offset)
}

func normalizeSleep(entry RawEntry) (Observation, *Rejection) {
	kind, ok := sleepStageKinds[entry.Value]
	if !ok {
		return Observation{}, &Rejection{
			Reason: RejectValueParse,
			Detail: fmt.Sprintf("unrecognized sleep stage %q", entry.Value),
		}
	}
	return observation(entry, kind, entry.End.Sub(entry.Start).Minutes())
}

func observation(entry RawEntry, kind MetricKind, value float64) (Observation, *Rejection) {
	return Observation{
		Kind:         kind,
		Value:        value,
		Time:         entry.Start.UTC(),
		OriginalZone: entry.Start.Location(),
		Source:       sanitizeSourceLabel(entry.SourceName),
	}, nil
}
