package healthexport

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

const (
	rootElement   = "HealthData"
	recordElement = "Record"

	// Export timestamps carry the device's UTC offset inline,
	// e.g. "2023-10-05 07:30:21 -0700".
	exportTimeLayout = "2006-01-02 15:04:05 -0700"
)

// Extractor streams RawEntry values out of an export document without holding
// the document in memory. It is a forward-only, non-restartable iterator:
// call Next until it returns io.EOF.
//
// A document that does not match the export schema fails with a
// *StructuralError. A single malformed record is counted via Skipped and the
// stream continues.
type Extractor struct {
	dec     *xml.Decoder
	started bool
	done    bool
	skipped int
}

func NewExtractor(r io.Reader) *Extractor {
	return &Extractor{dec: xml.NewDecoder(r)}
}

// Skipped reports how many individual records were dropped as malformed so
// far. The count is only final once Next has returned io.EOF.
func (e *Extractor) Skipped() int {
	return e.skipped
}

// Next returns the next record in document order. It returns io.EOF at the
// end of the document and *StructuralError if the document itself is invalid.
func (e *Extractor) Next() (RawEntry, error) {
	if e.done {
		return RawEntry{}, io.EOF
	}

	for {
		tok, err := e.dec.Token()
		if err == io.EOF {
			e.done = true
			if !e.started {
				return RawEntry{}, &StructuralError{Reason: "document has no root element"}
			}
			return RawEntry{}, io.EOF
		}
		if err != nil {
			e.done = true
			return RawEntry{}, &StructuralError{Reason: "malformed export document", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !e.started {
				if t.Name.Local != rootElement {
					e.done = true
					return RawEntry{}, &StructuralError{
						Reason: fmt.Sprintf("unexpected root element <%s>", t.Name.Local),
					}
				}
				e.started = true
				continue
			}

			if t.Name.Local != recordElement {
				// ExportDate, Me, Workout, ActivitySummary and friends
				// are not health records.
				if err := e.dec.Skip(); err != nil {
					e.done = true
					return RawEntry{}, &StructuralError{Reason: "malformed export document", Err: err}
				}
				continue
			}

			entry, ok := e.entryFromAttrs(t.Attr)
			// Consume the record's subtree (MetadataEntry children etc.)
			// regardless of whether the attributes were usable.
			if err := e.dec.Skip(); err != nil {
				e.done = true
				return RawEntry{}, &StructuralError{Reason: "malformed export document", Err: err}
			}
			if !ok {
				e.skipped++
				continue
			}
			return entry, nil

		case xml.EndElement:
			if t.Name.Local == rootElement {
				e.done = true
				return RawEntry{}, io.EOF
			}
		}
	}
}

func (e *Extractor) entryFromAttrs(attrs []xml.Attr) (RawEntry, bool) {
	entry := RawEntry{}
	var startRaw, endRaw string

	for _, attr := range attrs {
		switch attr.Name.Local {
		case "type":
			entry.TypeIdentifier = attr.Value
		case "unit":
			entry.Unit = attr.Value
		case "value":
			entry.Value = attr.Value
		case "sourceName":
			entry.SourceName = attr.Value
		case "startDate":
			startRaw = attr.Value
		case "endDate":
			endRaw = attr.Value
		}
	}

	if entry.TypeIdentifier == "" || entry.Value == "" || startRaw == "" || endRaw == "" {
		return RawEntry{}, false
	}

	start, err := parseExportTime(startRaw)
	if err != nil {
		return RawEntry{}, false
	}
	end, err := parseExportTime(endRaw)
	if err != nil {
		return RawEntry{}, false
	}

	entry.Start = start
	entry.End = end
	return entry, true
}

func parseExportTime(raw string) (time.Time, error) {
	return time.Parse(exportTimeLayout, raw)
}
