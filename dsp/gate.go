package dsp

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// GateFloor is the attenuation applied while the gate is closed.
//
// The gate never fully mutes: dropping to true silence on brief pauses
// causes audible clicks and can swallow the start of quiet speech, so
// closed means -20 dB, not mute.
const GateFloor = 0.1

// NoiseGate attenuates blocks whose level falls below a threshold.
//
// Per block it measures RMS level in dB, decides open (unity gain) or
// closed (GateFloor), and smooths the applied gain toward that target
// with a one-pole filter. The attack coefficient is used while opening
// and the release coefficient while closing; larger coefficients
// converge faster per block. Threshold and coefficients are adjustable
// at any time between blocks via atomic cells.
type NoiseGate struct {
	thresholdDb param
	attack      param
	release     param

	// current is the smoothed gain multiplier, written once per block
	// by the real-time path and read by the control side.
	current param

	open atomic.Bool
}

// NewNoiseGate creates a new noise gate.
//
// Parameters:
//   - thresholdDb: Level below which the gate closes (e.g. -50)
//   - attack: One-pole smoothing coefficient while opening, in (0, 1]
//   - release: One-pole smoothing coefficient while closing, in (0, 1]
//
// Returns:
//   - *NoiseGate: New gate instance, initialized open (gain 1.0)
//   - error: Validation error if a coefficient is out of range
func NewNoiseGate(thresholdDb, attack, release float64) (*NoiseGate, error) {
	if attack <= 0 || attack > 1 {
		return nil, fmt.Errorf("attack coefficient must be in (0, 1]: %f", attack)
	}
	if release <= 0 || release > 1 {
		return nil, fmt.Errorf("release coefficient must be in (0, 1]: %f", release)
	}

	ng := &NoiseGate{}
	ng.thresholdDb.Store(thresholdDb)
	ng.attack.Store(attack)
	ng.release.Store(release)
	ng.current.Store(1.0)
	ng.open.Store(true)

	logrus.WithFields(logrus.Fields{
		"function":     "NewNoiseGate",
		"threshold_db": thresholdDb,
		"attack":       attack,
		"release":      release,
	}).Info("Noise gate created")

	return ng, nil
}

// Process gates the block in place and updates the smoothed gain.
//
// The same gain is applied uniformly to every sample in the block; the
// decision and smoothing step happen once per block, not per sample.
func (ng *NoiseGate) Process(samples []float64) error {
	if len(samples) == 0 {
		return nil
	}

	levelDb := LinearToDb(BlockRMS(samples))
	gateOpen := levelDb > ng.thresholdDb.Load()

	targetGain := GateFloor
	coeff := ng.release.Load()
	if gateOpen {
		targetGain = 1.0
		coeff = ng.attack.Load()
	}

	if ng.open.Swap(gateOpen) != gateOpen {
		logrus.WithFields(logrus.Fields{
			"function":     "NoiseGate.Process",
			"level_db":     levelDb,
			"threshold_db": ng.thresholdDb.Load(),
			"open":         gateOpen,
		}).Debug("Gate state transition")
	}

	gain := ng.current.Load()
	gain += (targetGain - gain) * coeff
	ng.current.Store(gain)

	for i := range samples {
		samples[i] *= gain
	}
	return nil
}

// SetThreshold updates the gate threshold in dB.
func (ng *NoiseGate) SetThreshold(thresholdDb float64) {
	ng.thresholdDb.Store(thresholdDb)

	logrus.WithFields(logrus.Fields{
		"function":     "NoiseGate.SetThreshold",
		"threshold_db": thresholdDb,
	}).Debug("Gate threshold updated")
}

// Threshold returns the current gate threshold in dB.
func (ng *NoiseGate) Threshold() float64 {
	return ng.thresholdDb.Load()
}

// SetAttack updates the opening smoothing coefficient.
func (ng *NoiseGate) SetAttack(attack float64) error {
	if attack <= 0 || attack > 1 {
		return fmt.Errorf("attack coefficient must be in (0, 1]: %f", attack)
	}
	ng.attack.Store(attack)
	return nil
}

// SetRelease updates the closing smoothing coefficient.
func (ng *NoiseGate) SetRelease(release float64) error {
	if release <= 0 || release > 1 {
		return fmt.Errorf("release coefficient must be in (0, 1]: %f", release)
	}
	ng.release.Store(release)
	return nil
}

// CurrentGain returns the smoothed gain applied to the last block.
func (ng *NoiseGate) CurrentGain() float64 {
	return ng.current.Load()
}

// Name returns the stage name for logging.
func (ng *NoiseGate) Name() string {
	return fmt.Sprintf("NoiseGate(%.1fdB)", ng.thresholdDb.Load())
}

// Reset reopens the gate at unity gain.
func (ng *NoiseGate) Reset() {
	ng.current.Store(1.0)
	ng.open.Store(true)
}

// Close releases stage resources (no-op for the gate).
func (ng *NoiseGate) Close() error {
	return nil
}
