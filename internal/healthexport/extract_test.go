package healthexport

import (
	"errors"
	"io"
	"strings"
	"testing"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <ExportDate value="2024-03-02 09:00:00 -0500"/>
 <Me HKCharacteristicTypeIdentifierBiologicalSex="HKBiologicalSexNotSet"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" value="120" startDate="2024-03-01 08:00:00 -0500" endDate="2024-03-01 08:10:00 -0500"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" sourceName="Watch" unit="count/min" value="72" startDate="2024-03-01 08:05:00 -0500" endDate="2024-03-01 08:05:00 -0500">
  <MetadataEntry key="HKMetadataKeyHeartRateMotionContext" value="1"/>
 </Record>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Phone" unit="count" value="340" startDate="2024-03-01 12:00:00 -0500" endDate="2024-03-01 12:30:00 -0500"/>
</HealthData>`

func drain(t *testing.T, ex *Extractor) []RawEntry {
	t.Helper()

	var entries []RawEntry
	for {
		entry, err := ex.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}
		if err != nil {
			t.Fatalf("unexpected extraction error: %v", err)
		}
		entries = append(entries, entry)
	}
}

func TestExtractorYieldsRecordsInDocumentOrder(t *testing.T) {
	ex := NewExtractor(strings.NewReader(sampleExport))
	entries := drain(t, ex)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Value != "120" || entries[1].Value != "72" || entries[2].Value != "340" {
		t.Fatalf("entries out of document order: %+v", entries)
	}
	if entries[1].TypeIdentifier != "HKQuantityTypeIdentifierHeartRate" {
		t.Fatalf("unexpected type identifier: %s", entries[1].TypeIdentifier)
	}
	if ex.Skipped() != 0 {
		t.Fatalf("expected no skips, got %d", ex.Skipped())
	}
}

func TestExtractorParsesTimestampOffset(t *testing.T) {
	ex := NewExtractor(strings.NewReader(sampleExport))
	entries := drain(t, ex)

	start := entries[0].Start
	if start.UTC().Hour() != 13 {
		t.Fatalf("expected -0500 offset to normalize to 13:00 UTC, got %s", start.UTC())
	}
	_, offset := start.Zone()
	if offset != -5*3600 {
		t.Fatalf("expected original offset -0500 to be preserved, got %d", offset)
	}
}

func TestExtractorRejectsWrongRootElement(t *testing.T) {
	ex := NewExtractor(strings.NewReader(`<WorkoutData><Record/></WorkoutData>`))

	_, err := ex.Next()
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected structural error, got %v", err)
	}
	if !strings.Contains(structural.Reason, "WorkoutData") {
		t.Fatalf("reason should name the offending element: %s", structural.Reason)
	}
}

func TestExtractorRejectsEmptyDocument(t *testing.T) {
	ex := NewExtractor(strings.NewReader("  "))

	_, err := ex.Next()
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected structural error for empty input, got %v", err)
	}
}

func TestExtractorRejectsTruncatedDocument(t *testing.T) {
	truncated := `<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" value="120" startDate="2024-03-01 08:00:00 -0500" endDate="2024-03-01 08:10:00 -0500"/>
 <Record type="HKQuantityTypeIdentifier`

	ex := NewExtractor(strings.NewReader(truncated))

	if _, err := ex.Next(); err != nil {
		t.Fatalf("first record should parse, got %v", err)
	}

	_, err := ex.Next()
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected structural error for truncated document, got %v", err)
	}
}

func TestExtractorCountsMalformedRecordsAndContinues(t *testing.T) {
	doc := `<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" value="120" startDate="2024-03-01 08:00:00 -0500" endDate="2024-03-01 08:10:00 -0500"/>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" value="999"/>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" value="10" startDate="not-a-time" endDate="2024-03-01 09:00:00 -0500"/>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" value="340" startDate="2024-03-01 12:00:00 -0500" endDate="2024-03-01 12:30:00 -0500"/>
</HealthData>`

	ex := NewExtractor(strings.NewReader(doc))
	entries := drain(t, ex)

	if len(entries) != 2 {
		t.Fatalf("expected 2 usable entries, got %d", len(entries))
	}
	if ex.Skipped() != 2 {
		t.Fatalf("expected 2 skipped records, got %d", ex.Skipped())
	}
}

func TestExtractorIsExhaustedAfterEOF(t *testing.T) {
	ex := NewExtractor(strings.NewReader(sampleExport))
	drain(t, ex)

	if _, err := ex.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after exhaustion, got %v", err)
	}
}
