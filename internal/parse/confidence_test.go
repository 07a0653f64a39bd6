package parse

import (
	"math"
	"testing"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

func TestScoreMultiplicativePenalties(t *testing.T) {
	tests := []struct {
		name   string
		errors int
		reg    string
		aws    int
		want   float64
		bucket constants.ConfidenceBucket
	}{
		{"clean", 0, "AB12CDE", 10, 1.0, constants.BucketHigh},
		{"errors only", 1, "AB12CDE", 10, 0.7, constants.BucketMedium},
		{"short reg only", 0, "AB1", 10, 0.6, constants.BucketMedium},
		{"zero aws only", 0, "AB12CDE", 0, 0.5, constants.BucketLow},
		{"errors and short reg", 1, "AB1", 10, 0.42, constants.BucketLow},
		{"errors and zero aws", 1, "AB12CDE", 0, 0.35, constants.BucketLow},
		{"short reg and zero aws", 0, "AB1", 0, 0.3, constants.BucketLow},
		{"all three", 2, "AB1", 0, 0.21, constants.BucketLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := entity.ParsedJobRow{
				VehicleReg: tt.reg,
				ValidationErrors: func() []string {
					errs := make([]string, tt.errors)
					for i := range errs {
						errs[i] = "x"
					}
					return errs
				}(),
			}
			row.SetAWs(tt.aws)

			NewScorer(common.ScoringConfig{}).Score(&row)
			if math.Abs(row.Confidence-tt.want) > 1e-9 {
				t.Errorf("confidence = %v, want %v", row.Confidence, tt.want)
			}
			if got := constants.BucketFor(row.Confidence); got != tt.bucket {
				t.Errorf("bucket = %v, want %v", got, tt.bucket)
			}
		})
	}
}

func TestScorePenaltyAppliesOncePerCategory(t *testing.T) {
	row := entity.ParsedJobRow{
		VehicleReg:       "AB12CDE",
		ValidationErrors: []string{"a", "b", "c"},
	}
	row.SetAWs(10)
	NewScorer(common.ScoringConfig{}).Score(&row)
	if math.Abs(row.Confidence-0.7) > 1e-9 {
		t.Errorf("three errors must still cost a single 0.7 factor, got %v", row.Confidence)
	}
}

func TestScoreMissingRegCountsAsShort(t *testing.T) {
	row := entity.ParsedJobRow{VehicleReg: ""}
	row.SetAWs(10)
	NewScorer(common.ScoringConfig{}).Score(&row)
	if math.Abs(row.Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", row.Confidence)
	}
}

func TestScoreConfigOverridesFactors(t *testing.T) {
	row := entity.ParsedJobRow{VehicleReg: "AB12CDE", ValidationErrors: []string{"x"}}
	row.SetAWs(10)
	NewScorer(common.ScoringConfig{ErrorFactor: 0.9, ShortRegFactor: 0.6, ZeroAWsFactor: 0.5}).Score(&row)
	if math.Abs(row.Confidence-0.9) > 1e-9 {
		t.Errorf("confidence = %v, want 0.9", row.Confidence)
	}
}

func TestBucketBoundaries(t *testing.T) {
	tests := []struct {
		conf float64
		want constants.ConfidenceBucket
	}{
		{1.0, constants.BucketHigh},
		{0.8, constants.BucketHigh},
		{0.79, constants.BucketMedium},
		{0.6, constants.BucketMedium},
		{0.59, constants.BucketLow},
		{0.0, constants.BucketLow},
	}
	for _, tt := range tests {
		if got := constants.BucketFor(tt.conf); got != tt.want {
			t.Errorf("BucketFor(%v) = %v, want %v", tt.conf, got, tt.want)
		}
	}
}
