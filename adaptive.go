package voicepipe

import (
	"github.com/clearcomm/voicepipe/dsp"
	"github.com/sirupsen/logrus"
)

// Tuner adjustment policy. All adjustments are independent,
// non-exclusive, and applied every tick; the gain bounds and the two
// threshold settings are the only damping. A metric hovering at a tier
// boundary will oscillate by one step per tick, matching the source
// behavior this policy reproduces.
const (
	quietLevelDb = -30.0 // below this, boost gain
	loudLevelDb  = -6.0  // above this, cut gain

	boostStep = 1.2
	cutStep   = 0.8

	noisyPct = 20.0 // above this, tighten the gate
	cleanPct = 5.0  // below this, relax the gate

	tightThresholdDb   = -40.0
	relaxedThresholdDb = -60.0
)

// Tuner retunes the gain stage and noise gate from measured metrics.
//
// It is invoked once per monitor tick with the latest snapshot and is
// the sole writer of the shared gain and gate threshold; the real-time
// path only reads them. The policy is purely metric-driven per tick
// with no state machine beyond the bounds clamps.
type Tuner struct {
	gain *dsp.Gain
	gate *dsp.NoiseGate
}

// NewTuner creates a tuner over the given stages.
func NewTuner(gain *dsp.Gain, gate *dsp.NoiseGate) *Tuner {
	return &Tuner{gain: gain, gate: gate}
}

// Apply adjusts parameters for one metrics snapshot.
func (t *Tuner) Apply(m Metrics) {
	if m.AverageLevelDb < quietLevelDb {
		old := t.gain.Value()
		t.gain.SetGain(old * boostStep)
		logrus.WithFields(logrus.Fields{
			"function":     "Tuner.Apply",
			"avg_level_db": m.AverageLevelDb,
			"old_gain":     old,
			"new_gain":     t.gain.Value(),
		}).Debug("Boosting gain for quiet input")
	} else if m.AverageLevelDb > loudLevelDb {
		old := t.gain.Value()
		t.gain.SetGain(old * cutStep)
		logrus.WithFields(logrus.Fields{
			"function":     "Tuner.Apply",
			"avg_level_db": m.AverageLevelDb,
			"old_gain":     old,
			"new_gain":     t.gain.Value(),
		}).Debug("Cutting gain for loud input")
	}

	if m.NoiseLevelPct > noisyPct {
		if t.gate.Threshold() != tightThresholdDb {
			t.gate.SetThreshold(tightThresholdDb)
			logrus.WithFields(logrus.Fields{
				"function":     "Tuner.Apply",
				"noise_pct":    m.NoiseLevelPct,
				"threshold_db": tightThresholdDb,
			}).Debug("Tightening gate threshold for noisy input")
		}
	} else if m.NoiseLevelPct < cleanPct {
		if t.gate.Threshold() != relaxedThresholdDb {
			t.gate.SetThreshold(relaxedThresholdDb)
			logrus.WithFields(logrus.Fields{
				"function":     "Tuner.Apply",
				"noise_pct":    m.NoiseLevelPct,
				"threshold_db": relaxedThresholdDb,
			}).Debug("Relaxing gate threshold for clean input")
		}
	}
}
