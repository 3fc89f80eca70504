package voicepipe

// Block is one contiguous chunk of consecutive audio samples processed
// as a unit.
//
// Samples are floating point amplitudes normalized to roughly [-1, 1],
// tagged with the capture format. A block is transient: it flows
// through the chain once, possibly mutated in place, and is discarded.
// No stage retains blocks across calls.
type Block struct {
	Samples    []float64
	SampleRate uint32
	Channels   uint8
}

// Stream is an opaque pull-based handle to a live audio stream.
//
// The capture side implements Stream to supply raw blocks; the pipeline
// returns a Stream whose blocks have been processed, suitable for the
// transport layer to consume. ReadBlock may block until a block is
// available and returns io.EOF when the stream ends.
type Stream interface {
	ReadBlock() (*Block, error)
}

// MetricsCallback observes metric snapshots from the monitoring loop.
//
// Callbacks run on the monitor goroutine. A panicking callback is
// recovered and logged; it never interrupts monitoring or the audio
// path.
type MetricsCallback func(Metrics)
