package healthexport

import (
	"regexp"
	"strings"
)

// Device source labels come straight off the user's hardware and routinely
// embed owner names, emails, or serials ("jane.doe@example.com's iPhone").
// Labels are redacted before they leave the normalizer.
var (
	sourceEmailRegex    = regexp.MustCompile(`(?i)\b[\w.+-]+@[\w.-]+\.[a-z]{2,}\b`)
	sourceHexTokenRegex = regexp.MustCompile(`(?i)\b[0-9a-f]{24,}\b`)
	sourceLongNumRegex  = regexp.MustCompile(`\b\d{10,}\b`)
)

const maxSourceLabelLen = 120

func sanitizeSourceLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unknown-source"
	}

	label = sourceEmailRegex.ReplaceAllString(label, "<email>")
	label = sourceHexTokenRegex.ReplaceAllString(label, "<serial>")
	label = sourceLongNumRegex.ReplaceAllString(label, "<number>")

	if len(label) > maxSourceLabelLen {
		label = label[:maxSourceLabelLen]
	}
	return label
}
