package voicepipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComputeMetrics_Silence verifies the floor behavior for an
// all-silence snapshot.
func TestComputeMetrics_Silence(t *testing.T) {
	engine := NewEngine()

	timeData := make([]byte, 256)
	for i := range timeData {
		timeData[i] = 128
	}
	freqData := make([]byte, 128)

	m := engine.ComputeMetrics(timeData, freqData)

	assert.Equal(t, LevelFloorDb, m.AverageLevelDb, "silence clamps to the display floor")
	assert.Equal(t, float64(0), m.NoiseLevelPct)
	assert.Equal(t, float64(0), m.SignalLevelPct)
	assert.Equal(t, float64(0), m.SNR)
	assert.Equal(t, 0, m.QualityScore)
	assert.False(t, m.Timestamp.IsZero())
}

// TestComputeMetrics_EmptyInput verifies degenerate input returns floor
// metrics instead of failing.
func TestComputeMetrics_EmptyInput(t *testing.T) {
	engine := NewEngine()

	m := engine.ComputeMetrics(nil, nil)

	assert.Equal(t, LevelFloorDb, m.AverageLevelDb)
	assert.Equal(t, LevelFloorDb, m.PeakLevelDb)
	assert.Equal(t, 0, m.QualityScore)
}

// TestComputeMetrics_PerfectScore builds a snapshot hitting every top
// scoring tier: level in [-20,-6], dynamic range in [6,20], SNR >= 10.
func TestComputeMetrics_PerfectScore(t *testing.T) {
	engine := NewEngine()

	// One peak sample at 0.5 (-6 dB) among fifteen at ~0.086 gives an
	// RMS near -16.5 dB and a 10.4 dB peak-to-average spread.
	timeData := []byte{192, 139, 117, 139, 117, 139, 117, 139, 117, 139, 117, 139, 117, 139, 117, 139}

	// Quiet noise band (first 10% of bins), strong voice band.
	freqData := make([]byte, 64)
	for i := 6; i < 51; i++ {
		freqData[i] = 200
	}

	m := engine.ComputeMetrics(timeData, freqData)

	require.InDelta(t, -16.5, m.AverageLevelDb, 0.1)
	require.InDelta(t, -6.0, m.PeakLevelDb, 0.1)
	assert.Equal(t, float64(0), m.NoiseLevelPct)
	assert.Greater(t, m.SignalLevelPct, 70.0)
	assert.GreaterOrEqual(t, m.SNR, 10.0)
	assert.Equal(t, 100, m.QualityScore)
}

// TestComputeMetrics_SNRZeroWithoutSignal verifies the SNR rule: zero
// signal means zero SNR, not a division result.
func TestComputeMetrics_SNRZeroWithoutSignal(t *testing.T) {
	engine := NewEngine()

	timeData := []byte{192, 64, 192, 64}
	freqData := make([]byte, 64)
	for i := 0; i < 6; i++ {
		freqData[i] = 250 // noise only
	}

	m := engine.ComputeMetrics(timeData, freqData)

	assert.Greater(t, m.NoiseLevelPct, 90.0)
	assert.Equal(t, float64(0), m.SignalLevelPct)
	assert.Equal(t, float64(0), m.SNR)
}

// TestScoreTiers spot-checks each additive component's tiers.
func TestScoreTiers(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"level ideal", scoreLevel(-12), 40},
		{"level acceptable", scoreLevel(-25), 20},
		{"level too quiet", scoreLevel(-45), 0},
		{"level too hot", scoreLevel(-1), 0},
		{"range ideal", scoreDynamicRange(14), 30},
		{"range acceptable", scoreDynamicRange(4), 15},
		{"range flat", scoreDynamicRange(1), 0},
		{"range erratic", scoreDynamicRange(30), 0},
		{"snr excellent", scoreSNR(12), 30},
		{"snr good", scoreSNR(6), 20},
		{"snr fair", scoreSNR(3), 10},
		{"snr poor", scoreSNR(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
