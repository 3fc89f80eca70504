// Package dsp provides the sample-level processing stages for the
// voicepipe enhancement chain.
//
// Stages operate in place on blocks of float64 samples normalized to
// the [-1, 1] range and are designed for the real-time block path of a
// voice call: no allocation, no blocking I/O, and no locks during
// Process. Parameters that the slower tuning side adjusts at runtime
// are held in lock-free atomic cells so a block in flight never
// observes a torn value.
//
// The processing chain assembled by the pipeline:
//
//	Gain → Analyzer tap → NoiseGate → Compressor
//
// The Analyzer is not a Stage; it is a passive tap the pipeline pushes
// post-gain samples into, and the monitoring side pulls windowed
// time-domain and frequency-domain snapshots from.
package dsp
