package healthexport

import "fmt"

// StructuralError means the document itself does not conform to the expected
// export schema. It aborts the whole import run; per-entry problems never do.
type StructuralError struct {
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("structural error: %s", e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// RejectReason classifies why one entry was excluded from the import.
type RejectReason string

const (
	RejectUnknownType     RejectReason = "unknown_type"
	RejectUnitMismatch    RejectReason = "unit_mismatch"
	RejectValueParse      RejectReason = "value_parse_error"
	RejectInvalidInterval RejectReason = "invalid_interval"
	RejectMalformedEntry  RejectReason = "malformed_entry"
)

// Rejection is the tagged result for an entry the normalizer could not accept.
// Rejections are counted data flow, not errors: every one lands in the import
// report's skip or fail tallies.
type Rejection struct {
	Reason RejectReason
	Detail string
}

// Skipped reasons are data the import chose not to take; failed reasons are
// data it could not take.
func (r RejectReason) Skipped() bool {
	return r == RejectUnknownType || r == RejectUnitMismatch
}
