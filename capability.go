package voicepipe

import (
	"fmt"

	"github.com/clearcomm/voicepipe/dsp"
	"github.com/sirupsen/logrus"
)

// Nodes holds the processing nodes a capability builds for one pipeline
// run.
type Nodes struct {
	Gain       *dsp.Gain
	Gate       *dsp.NoiseGate
	Compressor *dsp.Compressor
	Analyzer   *dsp.Analyzer
}

// Capability abstracts whether this environment can run the
// enhancement chain.
//
// Exactly two implementations exist: EnhanceCapability builds the full
// chain, PassthroughCapability builds nothing and leaves the pipeline
// in passthrough mode. The implementation is selected when the pipeline
// is constructed; a Build error at Initialize time also degrades to
// passthrough rather than failing the call.
type Capability interface {
	// Name identifies the implementation in logs.
	Name() string

	// Build constructs the processing nodes for the configuration.
	// Returning ErrUnsupportedEnvironment (or nil Nodes with nil
	// error) means enhancement is unsupported and audio should pass
	// through unmodified.
	Build(cfg *Config) (*Nodes, error)
}

// EnhanceCapability is the production capability: it builds the full
// gain → gate → compressor chain with an analyzer tap.
type EnhanceCapability struct{}

// Name identifies the capability in logs.
func (EnhanceCapability) Name() string { return "enhance" }

// Build constructs the processing nodes from the configuration.
func (EnhanceCapability) Build(cfg *Config) (*Nodes, error) {
	gain, err := dsp.NewGain(cfg.Gain)
	if err != nil {
		return nil, fmt.Errorf("build gain stage: %w", err)
	}
	gate, err := dsp.NewNoiseGate(cfg.GateThresholdDb, cfg.GateAttack, cfg.GateRelease)
	if err != nil {
		return nil, fmt.Errorf("build noise gate: %w", err)
	}
	comp, err := dsp.NewCompressor(cfg.Compressor)
	if err != nil {
		return nil, fmt.Errorf("build compressor: %w", err)
	}
	analyzer, err := dsp.NewAnalyzer(cfg.AnalysisWindow)
	if err != nil {
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	return &Nodes{
		Gain:       gain,
		Gate:       gate,
		Compressor: comp,
		Analyzer:   analyzer,
	}, nil
}

// PassthroughCapability is the no-op fallback: it never builds a chain,
// so the pipeline returns the source stream unmodified.
type PassthroughCapability struct{}

// Name identifies the capability in logs.
func (PassthroughCapability) Name() string { return "passthrough" }

// Build reports that enhancement is unsupported.
func (PassthroughCapability) Build(cfg *Config) (*Nodes, error) {
	logrus.WithFields(logrus.Fields{
		"function": "PassthroughCapability.Build",
	}).Debug("Passthrough capability selected, no chain built")
	return nil, ErrUnsupportedEnvironment
}
