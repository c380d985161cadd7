package disease

import "strings"

// Severity tags, as shown to clients.
const (
	SeverityLow       = "LOW ✅"
	SeverityHigh      = "HIGH 🚨"
	SeverityModerate  = "MODERATE ⚠"
	SeverityUncertain = "LOW / UNCERTAIN ⚪"
)

const (
	healthyMarker     = "healthy"
	highThreshold     = 90.0
	moderateThreshold = 75.0
)

// Severity grades a prediction. confidence is a percentage in [0, 100].
// A healthy label is always LOW whatever the confidence; otherwise the
// thresholds are exclusive, so exactly 90 is MODERATE and exactly 75 is
// LOW / UNCERTAIN.
func Severity(label string, confidence float64) string {
	switch {
	case strings.Contains(strings.ToLower(label), healthyMarker):
		return SeverityLow
	case confidence > highThreshold:
		return SeverityHigh
	case confidence > moderateThreshold:
		return SeverityModerate
	default:
		return SeverityUncertain
	}
}
