package voicepipe

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceStream serves a fixed sample buffer in blocks, the way a capture
// layer would.
type sliceStream struct {
	samples    []float64
	blockSize  int
	sampleRate uint32
	pos        int
}

func newSliceStream(samples []float64, blockSize int, sampleRate uint32) *sliceStream {
	return &sliceStream{samples: samples, blockSize: blockSize, sampleRate: sampleRate}
}

func (s *sliceStream) ReadBlock() (*Block, error) {
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := s.pos + s.blockSize
	if end > len(s.samples) {
		end = len(s.samples)
	}
	blk := &Block{
		Samples:    append([]float64(nil), s.samples[s.pos:end]...),
		SampleRate: s.sampleRate,
		Channels:   1,
	}
	s.pos = end
	return blk, nil
}

// failingCapability simulates an unavailable audio subsystem.
type failingCapability struct{}

func (failingCapability) Name() string { return "failing" }
func (failingCapability) Build(cfg *Config) (*Nodes, error) {
	return nil, errors.New("audio subsystem unavailable")
}

func sineSamples(amplitude, freq float64, sampleRate uint32, dur time.Duration) []float64 {
	n := int(float64(sampleRate) * dur.Seconds())
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func drain(t *testing.T, s Stream) int {
	t.Helper()
	blocks := 0
	for {
		_, err := s.ReadBlock()
		if errors.Is(err, io.EOF) {
			return blocks
		}
		require.NoError(t, err)
		blocks++
	}
}

// TestPipeline_InitializeLifecycle verifies the basic wiring path.
func TestPipeline_InitializeLifecycle(t *testing.T) {
	p := NewPipeline(nil)
	assert.Equal(t, StateIdle, p.State())

	src := newSliceStream(sineSamples(0.3, 440, 16000, 100*time.Millisecond), 512, 16000)
	sink, err := p.Initialize(src)
	require.NoError(t, err)
	require.NotNil(t, sink)
	assert.NotEqual(t, Stream(src), sink, "initialized pipeline must return a processed stream")
	assert.Equal(t, StateRunning, p.State())

	_, err = p.Initialize(src)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	p.Cleanup()
	assert.Equal(t, StateReleased, p.State())
}

// TestPipeline_NilSource verifies the one hard failure.
func TestPipeline_NilSource(t *testing.T) {
	p := NewPipeline(nil)
	sink, err := p.Initialize(nil)
	assert.Nil(t, sink)
	assert.ErrorIs(t, err, ErrNilSource)
}

// TestPipeline_BuildFailureFallsBackToPassthrough verifies that a
// chain-build failure returns the original source so call audio keeps
// flowing.
func TestPipeline_BuildFailureFallsBackToPassthrough(t *testing.T) {
	p := NewPipelineWithCapability(nil, failingCapability{})

	src := newSliceStream(sineSamples(0.3, 440, 16000, 50*time.Millisecond), 512, 16000)
	sink, err := p.Initialize(src)
	require.NoError(t, err, "build failure must not surface as an error")
	assert.Equal(t, Stream(src), sink, "fallback must hand back the original source")
	assert.Equal(t, StateRunning, p.State())

	// Control methods are no-ops in passthrough mode.
	p.SetGain(2.0)
	p.SetNoiseGateThreshold(-40)
	p.StartMonitoring(func(Metrics) { t.Error("no monitoring in passthrough mode") })
	p.StopMonitoring()
	assert.Equal(t, LevelFloorDb, p.CurrentMetrics().AverageLevelDb)

	p.Cleanup()
}

// TestPipeline_PassthroughCapability verifies the explicit no-op
// implementation behaves like the fallback.
func TestPipeline_PassthroughCapability(t *testing.T) {
	p := NewPipelineWithCapability(nil, PassthroughCapability{})

	src := newSliceStream(sineSamples(0.3, 440, 16000, 50*time.Millisecond), 512, 16000)
	sink, err := p.Initialize(src)
	require.NoError(t, err)
	assert.Equal(t, Stream(src), sink)

	_, buildErr := PassthroughCapability{}.Build(DefaultConfig())
	assert.ErrorIs(t, buildErr, ErrUnsupportedEnvironment)
}

// TestPipeline_CleanupIdempotent verifies cleanup from every state,
// repeatedly.
func TestPipeline_CleanupIdempotent(t *testing.T) {
	p := NewPipeline(nil)
	p.Cleanup() // before initialize
	p.Cleanup()

	src := newSliceStream(sineSamples(0.3, 440, 16000, 50*time.Millisecond), 512, 16000)
	_, err := p.Initialize(src)
	require.NoError(t, err)
	p.StartMonitoring(nil)

	p.Cleanup()
	p.Cleanup()
	assert.Equal(t, StateReleased, p.State())

	// Control methods after cleanup are no-ops, not errors.
	p.SetGain(2.5)
	p.SetNoiseGateThreshold(-40)
	p.StartMonitoring(func(Metrics) { t.Error("monitoring after cleanup") })
	p.StopMonitoring()
	time.Sleep(30 * time.Millisecond)
}

// TestPipeline_SinkPassesThroughAfterCleanup verifies the sink handle
// keeps delivering audio, unprocessed, after the pipeline is released.
func TestPipeline_SinkPassesThroughAfterCleanup(t *testing.T) {
	p := NewPipeline(nil)

	samples := sineSamples(0.3, 440, 16000, 50*time.Millisecond)
	src := newSliceStream(samples, 512, 16000)
	sink, err := p.Initialize(src)
	require.NoError(t, err)

	p.Cleanup()

	blk, err := sink.ReadBlock()
	require.NoError(t, err)
	for i, s := range blk.Samples {
		assert.Equal(t, samples[i], s, "sample %d modified after cleanup", i)
	}
}

// TestPipeline_RoundTripMatchesFreshInstance verifies no state leaks
// across cleanup + re-initialize: the reused pipeline processes audio
// identically to a brand new one.
func TestPipeline_RoundTripMatchesFreshInstance(t *testing.T) {
	samples := sineSamples(0.5, 440, 16000, 100*time.Millisecond)

	run := func(p *Pipeline) []float64 {
		sink, err := p.Initialize(newSliceStream(samples, 512, 16000))
		require.NoError(t, err)
		var out []float64
		for {
			blk, err := sink.ReadBlock()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			out = append(out, blk.Samples...)
		}
		return out
	}

	reused := NewPipeline(nil)
	_, err := reused.Initialize(newSliceStream(samples, 512, 16000))
	require.NoError(t, err)
	reused.SetGain(2.7)
	reused.SetNoiseGateThreshold(-40)
	reused.Cleanup()

	got := run(reused)
	want := run(NewPipeline(nil))

	require.Equal(t, len(want), len(got))
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-12, "sample %d differs from fresh pipeline", i)
	}
}

// TestPipeline_SineToneScenario feeds one second of a 1 kHz tone at
// -10 dBFS and expects a healthy quality score from monitoring.
func TestPipeline_SineToneScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitorInterval = 5 * time.Millisecond
	p := NewPipeline(cfg)

	amplitude := math.Pow(10, -10.0/20.0)
	src := newSliceStream(sineSamples(amplitude, 1000, 16000, time.Second), 512, 16000)
	sink, err := p.Initialize(src)
	require.NoError(t, err)

	blocks := drain(t, sink)
	require.Greater(t, blocks, 30)

	metricsCh := make(chan Metrics, 64)
	p.StartMonitoring(func(m Metrics) {
		select {
		case metricsCh <- m:
		default:
		}
	})
	defer p.Cleanup()

	var m Metrics
	select {
	case m = <-metricsCh:
	case <-time.After(time.Second):
		t.Fatal("no metrics callback within a second")
	}

	assert.InDelta(t, -13.0, m.AverageLevelDb, 1.0, "sine RMS sits ~3 dB under its peak")
	assert.InDelta(t, -10.0, m.PeakLevelDb, 1.0)
	assert.Less(t, m.NoiseLevelPct, 5.0, "pure tone carries no low-band noise")
	assert.GreaterOrEqual(t, m.SNR, 10.0)
	assert.GreaterOrEqual(t, m.QualityScore, 70)
}

// TestPipeline_ProcessedOutputIsGated verifies quiet input is
// attenuated by the gate while loud input passes at full level.
func TestPipeline_ProcessedOutputIsGated(t *testing.T) {
	p := NewPipeline(nil)

	// Quiet hiss at -69 dB, well under the -50 dB gate threshold. Two
	// seconds gives the 0.1 release coefficient time to settle.
	quiet := sineSamples(0.0005, 440, 16000, 2*time.Second)
	sink, err := p.Initialize(newSliceStream(quiet, 512, 16000))
	require.NoError(t, err)
	defer p.Cleanup()

	var lastPeak float64
	blockIndex := 0
	for {
		blk, err := sink.ReadBlock()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		lastPeak = 0
		for _, s := range blk.Samples {
			if a := math.Abs(s); a > lastPeak {
				lastPeak = a
			}
		}
		blockIndex++
	}

	// By the final block the gate sits at its floor: output peak is
	// the input peak scaled by ~0.1.
	assert.Less(t, lastPeak, 0.0005*0.15, "gate did not attenuate sustained quiet input")
	assert.Greater(t, lastPeak, 0.0, "gate must never fully mute")
}

// TestPipeline_ConcurrentCleanupWaitsForMonitor verifies that a Cleanup
// racing another Cleanup also waits for the monitor loop to exit, so no
// metrics callback runs after either call returns.
func TestPipeline_ConcurrentCleanupWaitsForMonitor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitorInterval = 2 * time.Millisecond
	p := NewPipeline(cfg)

	src := newSliceStream(sineSamples(0.3, 440, 16000, time.Second), 512, 16000)
	_, err := p.Initialize(src)
	require.NoError(t, err)

	inCallback := make(chan struct{})
	release := make(chan struct{})
	p.StartMonitoring(func(Metrics) {
		select {
		case inCallback <- struct{}{}:
			<-release
		default:
		}
	})

	// Wait for a tick to park inside the callback.
	<-inCallback

	firstDone := make(chan struct{})
	go func() {
		p.Cleanup()
		close(firstDone)
	}()

	// Let the first Cleanup mark the pipeline released and block on the
	// monitor loop.
	time.Sleep(10 * time.Millisecond)

	secondDone := make(chan struct{})
	go func() {
		p.Cleanup()
		close(secondDone)
	}()

	select {
	case <-secondDone:
		t.Fatal("second Cleanup returned while a metrics callback was still executing")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-firstDone
	<-secondDone
	assert.Equal(t, StateReleased, p.State())
}
