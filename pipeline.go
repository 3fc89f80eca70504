package voicepipe

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/clearcomm/voicepipe/dsp"
	"github.com/sirupsen/logrus"
)

// State represents the pipeline lifecycle.
type State int

const (
	// StateIdle indicates the pipeline is constructed but not wired.
	StateIdle State = iota
	// StateRunning indicates blocks are flowing through the chain.
	StateRunning
	// StateReleased indicates Cleanup ran; the pipeline is inert until
	// Initialize is called again.
	StateReleased
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Pipeline owns the enhancement chain for one audio stream.
//
// Initialize wires Gain → NoiseGate → Compressor in fixed order with an
// analyzer tap after the gain stage (so analysis reflects the applied
// gain but not gating or compression artifacts) and returns the
// processed stream. On any chain-build failure it returns the original
// source unmodified: the pipeline never blocks call audio from flowing.
//
// Pipelines are explicitly constructed and owned; multiple independent
// instances can coexist. Cleanup releases everything, is idempotent,
// and is callable from any state; after Cleanup the control methods are
// no-ops until Initialize is called again.
type Pipeline struct {
	mu         sync.Mutex
	cfg        Config
	capability Capability
	state      State

	nodes   *Nodes
	out     *processedStream
	engine  *Engine
	tuner   *Tuner
	monitor *Monitor
}

// NewPipeline creates a pipeline with the production capability.
// A nil config selects DefaultConfig.
func NewPipeline(cfg *Config) *Pipeline {
	return NewPipelineWithCapability(cfg, EnhanceCapability{})
}

// NewPipelineWithCapability creates a pipeline with an explicit
// capability implementation. Hosts use this to force passthrough mode;
// tests use it to inject failures.
func NewPipelineWithCapability(cfg *Config, capability Capability) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewPipelineWithCapability",
		"capability": capability.Name(),
	}).Info("Pipeline created")

	return &Pipeline{
		cfg:        *cfg,
		capability: capability,
	}
}

// Initialize wires the chain onto the source and returns the processed
// stream for the transport layer to consume.
//
// Failure handling follows the never-block-audio rule: only a nil
// source or an already-running pipeline return an error. A capability
// that cannot build the chain is logged and the original source is
// returned as the sink, leaving the pipeline in passthrough mode.
func (p *Pipeline) Initialize(src Stream) (Stream, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateRunning {
		return nil, ErrAlreadyInitialized
	}

	nodes, err := p.capability.Build(&p.cfg)
	if err != nil {
		entry := logrus.WithFields(logrus.Fields{
			"function":   "Pipeline.Initialize",
			"capability": p.capability.Name(),
			"error":      err.Error(),
		})
		if errors.Is(err, ErrUnsupportedEnvironment) {
			entry.Info("Enhancement unsupported, passing audio through")
		} else {
			entry.Warn("Chain build failed, falling back to passthrough")
		}
		p.monitor = nil
		p.state = StateRunning
		return src, nil
	}
	if nodes == nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Pipeline.Initialize",
			"capability": p.capability.Name(),
		}).Info("Enhancement unsupported, passing audio through")
		p.monitor = nil
		p.state = StateRunning
		return src, nil
	}

	p.nodes = nodes
	p.engine = NewEngine()
	p.tuner = NewTuner(nodes.Gain, nodes.Gate)
	p.monitor = NewMonitor(p.cfg.MonitorInterval, nodes.Analyzer, p.engine, p.tuner)
	p.out = &processedStream{
		src:  src,
		pre:  dsp.NewChain(nodes.Gain),
		tap:  nodes.Analyzer,
		post: dsp.NewChain(nodes.Gate, nodes.Compressor),
	}
	p.state = StateRunning

	logrus.WithFields(logrus.Fields{
		"function":   "Pipeline.Initialize",
		"capability": p.capability.Name(),
		"chain":      append(p.out.pre.Names(), p.out.post.Names()...),
	}).Info("Pipeline initialized")

	return p.out, nil
}

// SetGain updates the gain stage, clamped to [dsp.MinGain, dsp.MaxGain].
// No-op after Cleanup or in passthrough mode.
func (p *Pipeline) SetGain(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nodes == nil {
		return
	}
	p.nodes.Gain.SetGain(gain)
}

// SetNoiseGateThreshold updates the gate threshold in dB.
// No-op after Cleanup or in passthrough mode.
func (p *Pipeline) SetNoiseGateThreshold(thresholdDb float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nodes == nil {
		return
	}
	p.nodes.Gate.SetThreshold(thresholdDb)
}

// StartMonitoring begins the monitoring loop, replacing any previous
// observer callback. No-op after Cleanup or in passthrough mode.
func (p *Pipeline) StartMonitoring(cb MetricsCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.monitor == nil || p.state != StateRunning {
		return
	}
	p.monitor.Start(cb)
}

// StopMonitoring halts the monitoring loop and clears the callback.
// Idempotent; no-op after Cleanup or in passthrough mode.
func (p *Pipeline) StopMonitoring() {
	p.mu.Lock()
	monitor := p.monitor
	p.mu.Unlock()
	if monitor == nil {
		return
	}
	monitor.Stop()
}

// CurrentMetrics returns the most recent metrics snapshot, or a floor
// snapshot if monitoring never ran.
func (p *Pipeline) CurrentMetrics() Metrics {
	p.mu.Lock()
	monitor := p.monitor
	released := p.state == StateReleased
	p.mu.Unlock()
	if monitor == nil || released {
		return Metrics{
			AverageLevelDb: LevelFloorDb,
			PeakLevelDb:    LevelFloorDb,
		}
	}
	return monitor.Current()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cleanup stops monitoring and releases all nodes.
//
// Callable from any state and idempotent. The processed stream handed
// out by Initialize keeps working but passes blocks through unmodified.
// After Cleanup, Initialize must be called again to reuse the pipeline.
func (p *Pipeline) Cleanup() {
	p.mu.Lock()
	monitor := p.monitor
	out := p.out
	nodes := p.nodes
	alreadyReleased := p.state == StateReleased
	p.tuner = nil
	p.engine = nil
	p.nodes = nil
	p.out = nil
	p.state = StateReleased
	p.mu.Unlock()

	// The monitor reference stays on the pipeline until the next
	// Initialize so that every Cleanup caller, not just the first,
	// waits for the monitor loop to exit before returning.
	if monitor != nil {
		monitor.Stop()
	}

	if alreadyReleased {
		return
	}
	if out != nil {
		out.released.Store(true)
	}
	if nodes != nil {
		chain := dsp.NewChain(nodes.Gain, nodes.Gate, nodes.Compressor)
		chain.Reset()
		if err := chain.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.Cleanup",
				"error":    err.Error(),
			}).Error("Failed to close chain")
		}
		nodes.Analyzer.Reset()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.Cleanup",
	}).Info("Pipeline cleaned up")
}

// processedStream is the sink handle returned by Initialize.
//
// ReadBlock pulls one block from the source and runs the chain in
// place: gain first, then the analyzer tap, then gate and compressor.
// Stage errors degrade to passing the block through rather than
// interrupting the call. Once the owning pipeline is cleaned up, blocks
// flow through untouched.
type processedStream struct {
	src      Stream
	pre      *dsp.Chain
	tap      *dsp.Analyzer
	post     *dsp.Chain
	released atomic.Bool
}

// ReadBlock returns the next processed block from the source.
func (s *processedStream) ReadBlock() (*Block, error) {
	blk, err := s.src.ReadBlock()
	if err != nil || blk == nil {
		return blk, err
	}
	if s.released.Load() {
		return blk, nil
	}

	if err := s.pre.Process(blk.Samples); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "processedStream.ReadBlock",
			"error":    err.Error(),
		}).Error("Pre-tap processing failed, passing block through")
		return blk, nil
	}
	s.tap.Push(blk.Samples)
	if err := s.post.Process(blk.Samples); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "processedStream.ReadBlock",
			"error":    err.Error(),
		}).Error("Post-tap processing failed, passing block through")
	}
	return blk, nil
}
