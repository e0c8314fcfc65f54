package healthexport

import (
	"math"
	"testing"
	"time"
)

func rawEntry(typeID, unit, value string) RawEntry {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.FixedZone("", -5*3600))
	return RawEntry{
		TypeIdentifier: typeID,
		Unit:           unit,
		Value:          value,
		Start:          start,
		End:            start.Add(5 * time.Minute),
		SourceName:     "Watch",
	}
}

func mustNormalize(t *testing.T, entry RawEntry) Observation {
	t.Helper()
	obs, rejection := Normalize(entry)
	if rejection != nil {
		t.Fatalf("unexpected rejection %s: %s", rejection.Reason, rejection.Detail)
	}
	return obs
}

func TestNormalizeConvertsPoundsToKilograms(t *testing.T) {
	obs := mustNormalize(t, rawEntry("HKQuantityTypeIdentifierBodyMass", "lb", "150"))

	if obs.Kind != MetricWeight {
		t.Fatalf("expected weight, got %s", obs.Kind)
	}
	if math.Abs(obs.Value-68.0388555) > 0.0001 {
		t.Fatalf("expected 150 lb = 68.0389 kg, got %f", obs.Value)
	}
}

func TestNormalizeConvertsMilesToKilometers(t *testing.T) {
	obs := mustNormalize(t, rawEntry("HKQuantityTypeIdentifierDistanceWalkingRunning", "mi", "2"))

	if math.Abs(obs.Value-3.218688) > 0.000001 {
		t.Fatalf("expected 2 mi = 3.218688 km, got %f", obs.Value)
	}
}

func TestNormalizeConvertsFahrenheitToCelsius(t *testing.T) {
	obs := mustNormalize(t, rawEntry("HKQuantityTypeIdentifierBodyTemperature", "degF", "98.6"))

	if math.Abs(obs.Value-37.0) > 0.0001 {
		t.Fatalf("expected 98.6 degF = 37 degC, got %f", obs.Value)
	}
}

func TestNormalizeNormalizesTimestampToUTC(t *testing.T) {
	obs := mustNormalize(t, rawEntry("HKQuantityTypeIdentifierHeartRate", "count/min", "72"))

	if obs.Time.Location() != time.UTC {
		t.Fatalf("observation time should be UTC, got %s", obs.Time.Location())
	}
	if obs.Time.Hour() != 13 {
		t.Fatalf("expected 08:00 -0500 to be 13:00 UTC, got %s", obs.Time)
	}
	_, offset := time.Date(2024, 3, 1, 0, 0, 0, 0, obs.OriginalZone).Zone()
	if offset != -5*3600 {
		t.Fatalf("original offset should be retained for display, got %d", offset)
	}
}

func TestNormalizeRejectsUnknownType(t *testing.T) {
	_, rejection := Normalize(rawEntry("HKQuantityTypeIdentifierSelfiesTaken", "count", "4"))

	if rejection == nil || rejection.Reason != RejectUnknownType {
		t.Fatalf("expected unknown_type rejection, got %+v", rejection)
	}
}

func TestNormalizeRejectsUnconvertibleUnit(t *testing.T) {
	_, rejection := Normalize(rawEntry("HKQuantityTypeIdentifierBodyMass", "furlong", "150"))

	if rejection == nil || rejection.Reason != RejectUnitMismatch {
		t.Fatalf("expected unit_mismatch rejection, got %+v", rejection)
	}
}

func TestNormalizeRejectsNonNumericValue(t *testing.T) {
	_, rejection := Normalize(rawEntry("HKQuantityTypeIdentifierStepCount", "count", "many"))

	if rejection == nil || rejection.Reason != RejectValueParse {
		t.Fatalf("expected value_parse_error rejection, got %+v", rejection)
	}
}

func TestNormalizeRejectsInvertedInterval(t *testing.T) {
	entry := rawEntry("HKQuantityTypeIdentifierStepCount", "count", "100")
	entry.End = entry.Start.Add(-time.Minute)

	_, rejection := Normalize(entry)
	if rejection == nil || rejection.Reason != RejectInvalidInterval {
		t.Fatalf("expected invalid_interval rejection, got %+v", rejection)
	}
}

func TestNormalizeSleepStageDuration(t *testing.T) {
	entry := rawEntry(sleepTypeIdentifier, "", "HKCategoryValueSleepAnalysisAsleepDeep")
	entry.End = entry.Start.Add(90 * time.Minute)

	obs := mustNormalize(t, entry)
	if obs.Kind != MetricSleepDeep {
		t.Fatalf("expected sleep_deep, got %s", obs.Kind)
	}
	if obs.Value != 90 {
		t.Fatalf("expected 90 minutes, got %f", obs.Value)
	}
}

func TestNormalizeRejectsUnknownSleepStage(t *testing.T) {
	entry := rawEntry(sleepTypeIdentifier, "", "HKCategoryValueSleepAnalysisNapping")

	_, rejection := Normalize(entry)
	if rejection == nil || rejection.Reason != RejectValueParse {
		t.Fatalf("expected value_parse_error for unknown stage, got %+v", rejection)
	}
}

func TestNormalizeSanitizesSourceLabel(t *testing.T) {
	entry := rawEntry("HKQuantityTypeIdentifierStepCount", "count", "10")
	entry.SourceName = "jane.doe@example.com's iPhone 1234567890123"

	obs := mustNormalize(t, entry)
	if obs.Source != "<email>'s iPhone <number>" {
		t.Fatalf("source label not sanitized: %q", obs.Source)
	}
}

func TestNormalizeDefaultsEmptySourceLabel(t *testing.T) {
	entry := rawEntry("HKQuantityTypeIdentifierStepCount", "count", "10")
	entry.SourceName = "  "

	obs := mustNormalize(t, entry)
	if obs.Source != "unknown-source" {
		t.Fatalf("expected fallback source label, got %q", obs.Source)
	}
}
