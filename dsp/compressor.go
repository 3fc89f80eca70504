package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// CompressorParams configures the dynamics compressor.
//
// Attack and Release are one-pole smoothing coefficients applied to the
// gain-reduction envelope, using the same smoothing model as the noise
// gate: larger values converge faster per sample.
type CompressorParams struct {
	ThresholdDb float64 // Level above which reduction begins
	KneeDb      float64 // Width of the soft knee centered on the threshold
	Ratio       float64 // Compression ratio (input dB over output dB above threshold)
	Attack      float64 // Envelope smoothing coefficient while reduction increases
	Release     float64 // Envelope smoothing coefficient while reduction recovers
}

// Validate checks parameter ranges.
func (p CompressorParams) Validate() error {
	if p.Ratio < 1 {
		return fmt.Errorf("ratio must be >= 1: %f", p.Ratio)
	}
	if p.KneeDb < 0 {
		return fmt.Errorf("knee width cannot be negative: %f", p.KneeDb)
	}
	if p.Attack <= 0 || p.Attack > 1 {
		return fmt.Errorf("attack coefficient must be in (0, 1]: %f", p.Attack)
	}
	if p.Release <= 0 || p.Release > 1 {
		return fmt.Errorf("release coefficient must be in (0, 1]: %f", p.Release)
	}
	return nil
}

// Compressor implements a feed-forward dynamics compressor.
//
// For each sample the instantaneous level in dB is compared against the
// threshold; levels inside the soft knee get linearly interpolated
// reduction, levels above the knee get full ratio reduction, levels
// below get none. The reduction is smoothed through a one-pole envelope
// before being applied, so gain changes never step abruptly. The
// compressor only attenuates; it never gates or silences the signal.
type Compressor struct {
	thresholdDb param
	kneeDb      param
	ratio       param
	attack      param
	release     param

	// envelope is the smoothed linear gain, owned by the block path.
	envelope param
}

// NewCompressor creates a new compressor with the given parameters.
func NewCompressor(p CompressorParams) (*Compressor, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compressor params: %w", err)
	}

	c := &Compressor{}
	c.thresholdDb.Store(p.ThresholdDb)
	c.kneeDb.Store(p.KneeDb)
	c.ratio.Store(p.Ratio)
	c.attack.Store(p.Attack)
	c.release.Store(p.Release)
	c.envelope.Store(1.0)

	logrus.WithFields(logrus.Fields{
		"function":     "NewCompressor",
		"threshold_db": p.ThresholdDb,
		"knee_db":      p.KneeDb,
		"ratio":        p.Ratio,
		"attack":       p.Attack,
		"release":      p.Release,
	}).Info("Compressor created")

	return c, nil
}

// Process compresses the block in place.
func (c *Compressor) Process(samples []float64) error {
	thresholdDb := c.thresholdDb.Load()
	kneeDb := c.kneeDb.Load()
	ratio := c.ratio.Load()
	attack := c.attack.Load()
	release := c.release.Load()
	gain := c.envelope.Load()

	for i, s := range samples {
		levelDb := LinearToDb(math.Abs(s))
		reductionDb := reduction(levelDb, thresholdDb, kneeDb, ratio)
		target := DbToLinear(-reductionDb)

		// Attack while clamping down, release while recovering.
		coeff := release
		if target < gain {
			coeff = attack
		}
		gain += (target - gain) * coeff

		samples[i] = s * gain
	}

	c.envelope.Store(gain)
	return nil
}

// reduction computes the unsmoothed gain reduction in dB for one sample
// level. Inside the knee the reduction ramps linearly from zero at the
// knee's lower edge to the full-ratio value at its upper edge.
func reduction(levelDb, thresholdDb, kneeDb, ratio float64) float64 {
	lower := thresholdDb - kneeDb/2
	if levelDb <= lower {
		return 0
	}
	slope := 1 - 1/ratio
	if levelDb >= thresholdDb+kneeDb/2 {
		return (levelDb - thresholdDb) * slope
	}
	t := (levelDb - lower) / kneeDb
	return t * (kneeDb / 2) * slope
}

// SetParams replaces the compressor parameters between blocks.
func (c *Compressor) SetParams(p CompressorParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid compressor params: %w", err)
	}
	c.thresholdDb.Store(p.ThresholdDb)
	c.kneeDb.Store(p.KneeDb)
	c.ratio.Store(p.Ratio)
	c.attack.Store(p.Attack)
	c.release.Store(p.Release)

	logrus.WithFields(logrus.Fields{
		"function":     "Compressor.SetParams",
		"threshold_db": p.ThresholdDb,
		"ratio":        p.Ratio,
	}).Debug("Compressor parameters updated")

	return nil
}

// Params returns the current parameter set.
func (c *Compressor) Params() CompressorParams {
	return CompressorParams{
		ThresholdDb: c.thresholdDb.Load(),
		KneeDb:      c.kneeDb.Load(),
		Ratio:       c.ratio.Load(),
		Attack:      c.attack.Load(),
		Release:     c.release.Load(),
	}
}

// Envelope returns the smoothed linear gain after the last block.
func (c *Compressor) Envelope() float64 {
	return c.envelope.Load()
}

// Name returns the stage name for logging.
func (c *Compressor) Name() string {
	return fmt.Sprintf("Compressor(%.1fdB %.0f:1)", c.thresholdDb.Load(), c.ratio.Load())
}

// Reset restores the gain envelope to unity.
func (c *Compressor) Reset() {
	c.envelope.Store(1.0)
}

// Close releases stage resources (no-op for the compressor).
func (c *Compressor) Close() error {
	return nil
}
