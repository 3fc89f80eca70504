package voicepipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcomm/voicepipe/dsp"
)

func newTestTuner(t *testing.T) (*Tuner, *dsp.Gain, *dsp.NoiseGate) {
	t.Helper()
	gain, err := dsp.NewGain(1.0)
	require.NoError(t, err)
	gate, err := dsp.NewNoiseGate(-50, 0.5, 0.1)
	require.NoError(t, err)
	return NewTuner(gain, gate), gain, gate
}

// TestTuner_BoostClampsAtMaxGain verifies gain saturates at the upper
// bound no matter how many consecutive boost decisions occur.
func TestTuner_BoostClampsAtMaxGain(t *testing.T) {
	tuner, gain, _ := newTestTuner(t)

	for i := 0; i < 50; i++ {
		tuner.Apply(Metrics{AverageLevelDb: -45})
	}

	assert.Equal(t, dsp.MaxGain, gain.Value())
}

// TestTuner_CutClampsAtMinGain verifies gain saturates at the lower
// bound under sustained loud input.
func TestTuner_CutClampsAtMinGain(t *testing.T) {
	tuner, gain, _ := newTestTuner(t)

	for i := 0; i < 50; i++ {
		tuner.Apply(Metrics{AverageLevelDb: -2})
	}

	assert.Equal(t, dsp.MinGain, gain.Value())
}

// TestTuner_GainUntouchedInComfortRange verifies no adjustment happens
// for levels between the quiet and loud thresholds.
func TestTuner_GainUntouchedInComfortRange(t *testing.T) {
	tuner, gain, _ := newTestTuner(t)

	tuner.Apply(Metrics{AverageLevelDb: -15})
	tuner.Apply(Metrics{AverageLevelDb: -28})
	tuner.Apply(Metrics{AverageLevelDb: -7})

	assert.Equal(t, 1.0, gain.Value())
}

// TestTuner_GateThresholdFollowsNoise verifies the threshold tightens
// on noisy input, relaxes on clean input, and holds in between.
func TestTuner_GateThresholdFollowsNoise(t *testing.T) {
	tuner, _, gate := newTestTuner(t)

	tuner.Apply(Metrics{AverageLevelDb: -15, NoiseLevelPct: 35})
	assert.Equal(t, -40.0, gate.Threshold(), "noisy input tightens the gate")

	tuner.Apply(Metrics{AverageLevelDb: -15, NoiseLevelPct: 10})
	assert.Equal(t, -40.0, gate.Threshold(), "mid-range noise holds the setting")

	tuner.Apply(Metrics{AverageLevelDb: -15, NoiseLevelPct: 2})
	assert.Equal(t, -60.0, gate.Threshold(), "clean input relaxes the gate")
}

// TestTuner_AdjustmentsAreIndependent verifies the gain and threshold
// rules both fire from one snapshot.
func TestTuner_AdjustmentsAreIndependent(t *testing.T) {
	tuner, gain, gate := newTestTuner(t)

	tuner.Apply(Metrics{AverageLevelDb: -40, NoiseLevelPct: 30})

	assert.InDelta(t, 1.2, gain.Value(), 1e-9)
	assert.Equal(t, -40.0, gate.Threshold())
}
