package voicepipe

import (
	"math"
	"time"

	"github.com/clearcomm/voicepipe/dsp"
	"github.com/sirupsen/logrus"
)

// LevelFloorDb is the display floor for the average level. Values below
// it are clamped so silence reads as a stable -60 dB instead of a
// drifting large negative number.
const LevelFloorDb = -60.0

// Metrics is a snapshot of measured signal quality.
//
// One snapshot is produced per monitor tick and consumed by the
// observer callback and the adaptive tuner. It is a value object with
// no identity beyond its timestamp.
type Metrics struct {
	AverageLevelDb float64   // RMS level in dB, clamped to LevelFloorDb
	PeakLevelDb    float64   // Peak sample level in dB
	NoiseLevelPct  float64   // Low-band energy as a 0-100 percentage
	SignalLevelPct float64   // Voice-band energy as a 0-100 percentage
	SNR            float64   // SignalLevelPct / NoiseLevelPct
	QualityScore   int       // Composite 0-100 heuristic
	Timestamp      time.Time // When the snapshot was taken
}

// Engine computes Metrics from analyzer snapshots.
//
// It consumes byte-scaled time-domain data (silence centered on 128)
// and byte-scaled frequency-domain magnitudes, the encodings produced
// by dsp.Analyzer. The engine is stateless; every snapshot is computed
// from scratch.
type Engine struct{}

// NewEngine creates a metrics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ComputeMetrics produces a quality snapshot from one pair of analyzer
// snapshots.
//
// Degenerate input never fails: empty blocks yield a floor snapshot
// rather than dividing by zero.
func (e *Engine) ComputeMetrics(timeData, freqData []byte) Metrics {
	m := Metrics{
		AverageLevelDb: LevelFloorDb,
		PeakLevelDb:    LevelFloorDb,
		Timestamp:      time.Now(),
	}
	if len(timeData) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.ComputeMetrics",
		}).Debug("Empty time-domain snapshot, returning floor metrics")
		return m
	}

	m.AverageLevelDb, m.PeakLevelDb = timeLevels(timeData)
	m.NoiseLevelPct, m.SignalLevelPct = bandLevels(freqData)

	if m.SignalLevelPct > 0 {
		m.SNR = m.SignalLevelPct / (m.NoiseLevelPct + 1e-10)
	}

	m.QualityScore = scoreLevel(m.AverageLevelDb) +
		scoreDynamicRange(m.PeakLevelDb-m.AverageLevelDb) +
		scoreSNR(m.SNR)
	if m.QualityScore > 100 {
		m.QualityScore = 100
	}

	return m
}

// timeLevels computes the average (RMS) and peak levels in dB from a
// byte-scaled time-domain snapshot. Raw bytes map to [-1, 1] via
// (raw-128)/128. The average is clamped to LevelFloorDb; the peak is
// converted with the same epsilon formula but left unclamped.
func timeLevels(timeData []byte) (avgDb, peakDb float64) {
	var sum, peak float64
	for _, b := range timeData {
		v := (float64(b) - 128.0) / 128.0
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sum / float64(len(timeData)))

	avgDb = dsp.LinearToDb(rms)
	if avgDb < LevelFloorDb {
		avgDb = LevelFloorDb
	}
	return avgDb, dsp.LinearToDb(peak)
}

// bandLevels splits the magnitude spectrum into a noise band (lowest
// 10% of bins) and a voice band (10th to 80th percentile index) and
// returns each band's average magnitude rescaled from 0-255 to a 0-100
// percentage.
func bandLevels(freqData []byte) (noisePct, signalPct float64) {
	n := len(freqData)
	if n == 0 {
		return 0, 0
	}

	noiseEnd := n / 10
	if noiseEnd == 0 {
		noiseEnd = 1
	}
	signalEnd := n * 8 / 10

	noisePct = bandAverage(freqData[:noiseEnd]) / 255.0 * 100.0
	if signalEnd > noiseEnd {
		signalPct = bandAverage(freqData[noiseEnd:signalEnd]) / 255.0 * 100.0
	}
	return noisePct, signalPct
}

func bandAverage(bins []byte) float64 {
	var sum float64
	for _, b := range bins {
		sum += float64(b)
	}
	return sum / float64(len(bins))
}

// scoreLevel rewards an average level in the comfortable speech range.
func scoreLevel(avgDb float64) int {
	switch {
	case avgDb >= -20 && avgDb <= -6:
		return 40
	case avgDb >= -30 && avgDb <= -3:
		return 20
	default:
		return 0
	}
}

// scoreDynamicRange rewards a healthy peak-to-average spread. Too
// little means over-compressed or noisy audio, too much means erratic
// levels.
func scoreDynamicRange(rangeDb float64) int {
	switch {
	case rangeDb >= 6 && rangeDb <= 20:
		return 30
	case rangeDb >= 3 && rangeDb <= 25:
		return 15
	default:
		return 0
	}
}

// scoreSNR rewards separation between voice-band and noise-band energy.
func scoreSNR(snr float64) int {
	switch {
	case snr >= 10:
		return 30
	case snr >= 5:
		return 20
	case snr >= 2:
		return 10
	default:
		return 0
	}
}
