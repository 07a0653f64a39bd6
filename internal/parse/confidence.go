package parse

import (
	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

// shortRegThreshold: a registration under this many characters cannot be
// a real plate and drags the row's trust down.
const shortRegThreshold = 4

// Scorer computes the [0,1] confidence score for a parsed row. The three
// penalties are independent and compose by multiplication, so the preview
// triage buckets keep their ordering.
type Scorer struct {
	errorFactor    float64
	shortRegFactor float64
	zeroAWsFactor  float64
}

// NewScorer builds a scorer from config, falling back to the tuned
// constants for any unset factor.
func NewScorer(cfg common.ScoringConfig) *Scorer {
	s := &Scorer{
		errorFactor:    cfg.ErrorFactor,
		shortRegFactor: cfg.ShortRegFactor,
		zeroAWsFactor:  cfg.ZeroAWsFactor,
	}
	if s.errorFactor <= 0 {
		s.errorFactor = constants.PenaltyValidationErrors
	}
	if s.shortRegFactor <= 0 {
		s.shortRegFactor = constants.PenaltyShortReg
	}
	if s.zeroAWsFactor <= 0 {
		s.zeroAWsFactor = constants.PenaltyZeroAWs
	}
	return s
}

// Score recomputes and stores the row's confidence. Called after parsing
// and again after every manual or bulk edit.
func (s *Scorer) Score(row *entity.ParsedJobRow) {
	c := 1.0
	if len(row.ValidationErrors) > 0 {
		c *= s.errorFactor
	}
	if len(row.VehicleReg) < shortRegThreshold {
		c *= s.shortRegFactor
	}
	if row.AWs == 0 {
		c *= s.zeroAWsFactor
	}
	row.Confidence = c
}
