package dsp

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stage defines the interface for a processing stage in the chain.
//
// Stages process blocks of normalized samples in place. They can be
// chained together to build the enhancement pipeline. Process is called
// from the real-time block path and must not allocate, block, or take
// locks; all other methods are called from the control side between
// blocks.
type Stage interface {
	// Process applies the stage to the block in place.
	Process(samples []float64) error

	// Name returns a human-readable name for the stage.
	Name() string

	// Reset restores the stage's mutable state to its initial value.
	Reset()

	// Close releases any resources used by the stage.
	Close() error
}

// Chain runs an ordered sequence of stages.
//
// Stages are applied sequentially in the order they were added. An
// error from any stage stops processing and is returned immediately.
type Chain struct {
	stages []Stage
}

// NewChain creates a chain over the given stages, applied in order.
func NewChain(stages ...Stage) *Chain {
	logrus.WithFields(logrus.Fields{
		"function":    "NewChain",
		"stage_count": len(stages),
	}).Debug("Creating processing chain")

	return &Chain{stages: stages}
}

// Add appends a stage to the end of the chain.
func (c *Chain) Add(stage Stage) {
	c.stages = append(c.stages, stage)

	logrus.WithFields(logrus.Fields{
		"function":    "Chain.Add",
		"stage_name":  stage.Name(),
		"stage_count": len(c.stages),
	}).Debug("Stage added to chain")
}

// Process applies all stages in order to the block in place.
func (c *Chain) Process(samples []float64) error {
	for i, stage := range c.stages {
		if err := stage.Process(samples); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "Chain.Process",
				"stage_index": i,
				"stage_name":  stage.Name(),
				"error":       err.Error(),
			}).Error("Stage processing failed")
			return fmt.Errorf("stage %d (%s) failed: %w", i, stage.Name(), err)
		}
	}
	return nil
}

// Len returns the number of stages in the chain.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Names returns the names of all stages in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.stages))
	for i, stage := range c.stages {
		names[i] = stage.Name()
	}
	return names
}

// Reset restores every stage to its initial state.
func (c *Chain) Reset() {
	for _, stage := range c.stages {
		stage.Reset()
	}
}

// Close releases all stage resources. All stages are closed even if
// some fail; the first error is returned.
func (c *Chain) Close() error {
	var firstErr error
	for _, stage := range c.stages {
		if err := stage.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Chain.Close",
				"stage_name": stage.Name(),
				"error":      err.Error(),
			}).Error("Failed to close stage")
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", stage.Name(), err)
			}
		}
	}
	c.stages = c.stages[:0]
	return firstErr
}
