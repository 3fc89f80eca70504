package voicepipe

import (
	"time"

	"github.com/clearcomm/voicepipe/dsp"
)

// Config defines the pipeline's initial tuning.
//
// These values seed the processing stages at Initialize; afterwards the
// gain and gate threshold are owned by the adaptive tuner and the
// control API. Re-initializing after Cleanup restores every stage to
// these values.
type Config struct {
	// Gain is the initial linear gain multiplier, within
	// [dsp.MinGain, dsp.MaxGain].
	Gain float64

	// GateThresholdDb is the initial noise gate threshold. The tuner
	// moves it between -60 dB (relaxed) and -40 dB (tight) based on
	// measured noise.
	GateThresholdDb float64

	// GateAttack and GateRelease are the gate's one-pole smoothing
	// coefficients in (0, 1]; larger values converge faster per block.
	GateAttack  float64
	GateRelease float64

	// Compressor carries the dynamics compressor parameters.
	Compressor dsp.CompressorParams

	// MonitorInterval is the monitoring loop cadence.
	MonitorInterval time.Duration

	// AnalysisWindow is the analyzer tap window length in samples,
	// a power of 2.
	AnalysisWindow int
}

// DefaultConfig returns tuning suitable for typical voice capture.
//
// Gate and compressor values are conservative: the gate re-opens
// quickly so speech onsets are not clipped and closes slowly to ride
// out short pauses; the compressor uses a wide soft knee so reduction
// comes in gradually.
func DefaultConfig() *Config {
	return &Config{
		Gain:            1.0,
		GateThresholdDb: -50.0,
		GateAttack:      0.5,
		GateRelease:     0.1,
		Compressor: dsp.CompressorParams{
			ThresholdDb: -24.0,
			KneeDb:      30.0,
			Ratio:       12.0,
			Attack:      0.5,
			Release:     0.1,
		},
		MonitorInterval: 16 * time.Millisecond, // display-refresh paced, ~60 Hz
		AnalysisWindow:  1024,
	}
}
