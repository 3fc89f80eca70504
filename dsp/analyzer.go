package dsp

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Byte-scaling range for frequency snapshots. Bin magnitudes are
// converted to dB and mapped linearly from this range onto 0-255;
// values below MinDecibels clamp to 0 and above MaxDecibels to 255.
const (
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// Analyzer is a passive tap on the processing chain.
//
// The real-time path pushes post-gain samples into a fixed ring buffer;
// the monitoring side pulls windowed snapshots at its own cadence. The
// time-domain snapshot is byte-scaled with silence centered on 128, and
// the frequency-domain snapshot is a Hanning-windowed FFT magnitude
// spectrum byte-scaled over [MinDecibels, MaxDecibels].
//
// Push is a bounded memcpy under a mutex; snapshot methods allocate and
// run the FFT, which is acceptable on the monitoring side only.
type Analyzer struct {
	mu     sync.Mutex
	ring   []float64
	pos    int
	window []float64
}

// NewAnalyzer creates an analyzer with the given window size.
//
// Parameters:
//   - windowSize: Analysis window length, a power of 2 in [256, 8192]
//
// Returns:
//   - *Analyzer: New analyzer with a zeroed ring buffer
//   - error: Validation error if the window size is invalid
func NewAnalyzer(windowSize int) (*Analyzer, error) {
	if windowSize < 256 || windowSize > 8192 || windowSize&(windowSize-1) != 0 {
		return nil, fmt.Errorf("window size must be a power of 2 in [256, 8192]: %d", windowSize)
	}

	// Periodic Hanning window: bin-exact tones stay confined to their
	// neighboring bins instead of leaking across the spectrum.
	window := make([]float64, windowSize)
	for i := range window {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(windowSize)))
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewAnalyzer",
		"window_size": windowSize,
	}).Info("Analyzer tap created")

	return &Analyzer{
		ring:   make([]float64, windowSize),
		window: window,
	}, nil
}

// WindowSize returns the analysis window length in samples.
func (a *Analyzer) WindowSize() int {
	return len(a.ring)
}

// Push appends a block of samples to the ring buffer, overwriting the
// oldest data once the window is full.
func (a *Analyzer) Push(samples []float64) {
	if len(samples) == 0 {
		return
	}

	a.mu.Lock()
	// A block larger than the window only keeps its tail.
	if len(samples) > len(a.ring) {
		samples = samples[len(samples)-len(a.ring):]
	}
	n := copy(a.ring[a.pos:], samples)
	if n < len(samples) {
		copy(a.ring, samples[n:])
	}
	a.pos = (a.pos + len(samples)) % len(a.ring)
	a.mu.Unlock()
}

// snapshot copies the ring contents in chronological order.
func (a *Analyzer) snapshot() []float64 {
	out := make([]float64, len(a.ring))
	a.mu.Lock()
	n := copy(out, a.ring[a.pos:])
	copy(out[n:], a.ring[:a.pos])
	a.mu.Unlock()
	return out
}

// TimeDomain returns a byte-scaled snapshot of the current window.
//
// Each sample maps from [-1, 1] to [0, 255] with silence at 128, the
// encoding the metrics engine expects.
func (a *Analyzer) TimeDomain() []byte {
	samples := a.snapshot()
	out := make([]byte, len(samples))
	for i, s := range samples {
		v := 128 + s*128
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out[i] = byte(v)
	}
	return out
}

// FrequencyDomain returns a byte-scaled magnitude spectrum of the
// current window.
//
// The window is Hanning-weighted, transformed with a radix-2 FFT, and
// the first half of the magnitude spectrum (windowSize/2 bins) is
// normalized to amplitude and mapped from [MinDecibels, MaxDecibels]
// onto [0, 255].
func (a *Analyzer) FrequencyDomain() []byte {
	samples := a.snapshot()
	n := len(samples)

	spectrum := make([]complex128, n)
	for i, s := range samples {
		spectrum[i] = complex(s*a.window[i], 0)
	}
	fft(spectrum)

	bins := make([]byte, n/2)
	// The Hanning window halves the coherent gain, compensate by 2/n*2.
	scale := 4.0 / float64(n)
	for i := range bins {
		re := real(spectrum[i])
		im := imag(spectrum[i])
		mag := math.Sqrt(re*re+im*im) * scale
		db := LinearToDb(mag)

		v := (db - MinDecibels) / (MaxDecibels - MinDecibels) * 255.0
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		bins[i] = byte(v)
	}
	return bins
}

// Reset zeroes the ring buffer.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	for i := range a.ring {
		a.ring[i] = 0
	}
	a.pos = 0
	a.mu.Unlock()
}

// fft computes an in-place radix-2 Cooley-Tukey FFT.
// The input length must be a power of 2.
func fft(data []complex128) {
	n := len(data)
	if n <= 1 {
		return
	}

	// Bit-reverse ordering
	for i, j := 0, 0; i < n; i++ {
		if j > i {
			data[i], data[j] = data[j], data[i]
		}
		bit := n >> 1
		for j&bit != 0 {
			j ^= bit
			bit >>= 1
		}
		j ^= bit
	}

	for size := 2; size <= n; size <<= 1 {
		halfSize := size >> 1
		step := 2 * math.Pi / float64(size)
		for i := 0; i < n; i += size {
			for j := 0; j < halfSize; j++ {
				u := data[i+j]
				v := data[i+j+halfSize] * complex(math.Cos(float64(j)*step), -math.Sin(float64(j)*step))
				data[i+j] = u + v
				data[i+j+halfSize] = u - v
			}
		}
	}
}
