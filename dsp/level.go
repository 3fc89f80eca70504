package dsp

import (
	"math"
	"sync/atomic"
)

// levelEpsilon keeps dB conversions finite on digital silence.
const levelEpsilon = 1e-10

// LinearToDb converts a linear amplitude to decibels.
//
// A small epsilon is added before the logarithm so that silence maps to
// a large negative value instead of -Inf.
func LinearToDb(v float64) float64 {
	return 20.0 * math.Log10(v+levelEpsilon)
}

// DbToLinear converts a decibel value to a linear amplitude multiplier.
func DbToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// BlockRMS computes the root-mean-square amplitude of a sample block.
// Returns 0 for an empty block.
func BlockRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// param is a lock-free float64 cell shared between the real-time block
// path and the control/tuning side. Each field is independently atomic;
// cross-field consistency is not required, a one-tick lag in any single
// parameter is acceptable.
type param struct {
	bits atomic.Uint64
}

// Store atomically replaces the parameter value.
func (p *param) Store(v float64) {
	p.bits.Store(math.Float64bits(v))
}

// Load atomically reads the parameter value.
func (p *param) Load() float64 {
	return math.Float64frombits(p.bits.Load())
}
