// Package voicepipe implements a real-time audio enhancement pipeline
// for voice calls.
//
// The pipeline sits between a raw microphone capture stream and the
// outbound transmission stream. Every block of captured audio flows
// through a fixed chain of gain, noise gate, and dynamics compressor
// stages on the real-time path, while a slower monitoring loop samples
// an analyzer tap, computes quality metrics, and adaptively retunes the
// gain and gate within bounds.
//
// Design Philosophy:
// - Never block call audio: every failure path degrades to passthrough
// - Strict separation between the real-time block path and monitoring
// - Lock-free parameter cells shared between the two paths
// - Explicit pipeline objects with construct/initialize/cleanup lifecycle
//
// Basic usage:
//
//	p := voicepipe.NewPipeline(nil)
//	sink, err := p.Initialize(source)
//	if err != nil {
//	    // only a nil source fails; format problems fall back to passthrough
//	}
//	p.StartMonitoring(func(m voicepipe.Metrics) {
//	    fmt.Printf("quality: %d/100\n", m.QualityScore)
//	})
//	defer p.Cleanup()
//
// The transport layer drives the pipeline by reading blocks from the
// returned sink stream; the pipeline never schedules audio itself.
package voicepipe
