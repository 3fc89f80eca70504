package dsp

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Gain bounds. The tuning policy boosts quiet input and pulls back loud
// input within this range; values outside it risk inaudibility or
// clipping on typical voice capture.
const (
	MinGain = 0.3
	MaxGain = 3.0
)

// Gain implements the user/adaptive gain stage.
//
// Provides linear gain adjustment with clipping protection. The gain
// value is held in an atomic cell so the tuning side can adjust it
// between blocks while the real-time path reads it lock-free.
type Gain struct {
	gain param
}

// NewGain creates a new gain stage.
//
// Parameters:
//   - gain: Linear gain multiplier, must be within [MinGain, MaxGain]
//
// Returns:
//   - *Gain: New gain stage instance
//   - error: Validation error if gain is out of range
func NewGain(gain float64) (*Gain, error) {
	if gain < MinGain || gain > MaxGain {
		return nil, fmt.Errorf("gain out of range [%.1f, %.1f]: %f", MinGain, MaxGain, gain)
	}

	g := &Gain{}
	g.gain.Store(gain)

	logrus.WithFields(logrus.Fields{
		"function": "NewGain",
		"gain":     gain,
	}).Info("Gain stage created")

	return g, nil
}

// Process applies the current gain to the block in place.
//
// Samples are clamped to [-1, 1] after scaling to prevent downstream
// stages and the sink from seeing out-of-range amplitudes.
func (g *Gain) Process(samples []float64) error {
	gain := g.gain.Load()
	for i, s := range samples {
		v := s * gain
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		samples[i] = v
	}
	return nil
}

// SetGain updates the gain value, clamping it to [MinGain, MaxGain].
// Safe to call at any time between block calls.
func (g *Gain) SetGain(gain float64) {
	if gain < MinGain {
		gain = MinGain
	} else if gain > MaxGain {
		gain = MaxGain
	}
	g.gain.Store(gain)

	logrus.WithFields(logrus.Fields{
		"function": "Gain.SetGain",
		"gain":     gain,
	}).Debug("Gain updated")
}

// Value returns the current gain multiplier.
func (g *Gain) Value() float64 {
	return g.gain.Load()
}

// Name returns the stage name for logging.
func (g *Gain) Name() string {
	return fmt.Sprintf("Gain(%.2f)", g.gain.Load())
}

// Reset is a no-op; the gain value is configuration, not per-run state.
func (g *Gain) Reset() {}

// Close releases stage resources (no-op for gain).
func (g *Gain) Close() error {
	return nil
}
