package constants

// Confidence penalty factors. Empirically tuned in the original import
// screen; the preview UI buckets rows by the resulting score, so the
// ordering of single-issue scores (0.5..0.7) must not change.
const (
	// PenaltyValidationErrors is applied once when a row carries any
	// validation errors, regardless of how many.
	PenaltyValidationErrors = 0.7
	// PenaltyShortReg is applied when the vehicle registration is missing
	// or under four characters after normalization.
	PenaltyShortReg = 0.6
	// PenaltyZeroAWs is applied when the row has no allocated work.
	PenaltyZeroAWs = 0.5
)

// Confidence bucket boundaries used for preview triage.
const (
	ConfidenceHighMin   = 0.8
	ConfidenceMediumMin = 0.6
)

// ConfidenceBucket is the triage band a row's score falls into.
type ConfidenceBucket string

const (
	BucketHigh   ConfidenceBucket = "HIGH"
	BucketMedium ConfidenceBucket = "MEDIUM"
	BucketLow    ConfidenceBucket = "LOW"
)

// BucketFor maps a [0,1] confidence score to its triage band.
func BucketFor(score float64) ConfidenceBucket {
	switch {
	case score >= ConfidenceHighMin:
		return BucketHigh
	case score >= ConfidenceMediumMin:
		return BucketMedium
	default:
		return BucketLow
	}
}
