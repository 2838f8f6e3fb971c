package mmwave

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annzb/mmwave/internal/params"
)

// chirpProfile is a representative xWR1642 profile used across config tests.
func chirpProfile() map[string]float64 {
	return map[string]float64{
		"numTxAnt":         2,
		"numAdcSamples":    240,
		"chirpEndIdx":      1,
		"chirpStartIdx":    0,
		"numLoops":         16,
		"digOutSampleRate": 5500,
		"freqSlopeConst":   68,
		"startFreq":        77,
		"idleTime":         7,
		"rampEndTime":      58,
	}
}

func TestDeriveConfig(t *testing.T) {
	t.Parallel()

	reg := params.NewStatic(chirpProfile())
	cfg, err := DeriveConfig(context.Background(), reg)
	require.NoError(t, err)

	// 240 ADC samples round up to 256 range bins.
	assert.Equal(t, 256, cfg.NumRangeBins)
	// (1 - 0 + 1) * 16 chirps / 2 TX antennas
	assert.Equal(t, 16, cfg.NumDopplerBins)

	assert.InDelta(t, 300*5500/(2*68*1e3*256), cfg.RangeIdxToMeters, 1e-9)
	assert.InDelta(t, 3e8/(2*77*1e9*(7+58)*1e-6*32), cfg.DopplerResolutionToMps, 1e-12)

	// Angle limits default to disabled.
	assert.Equal(t, 90.0, cfg.MaxAllowedElevationAngleDeg)
	assert.Equal(t, 90.0, cfg.MaxAllowedAzimuthAngleDeg)
}

func TestDeriveConfigAngleLimits(t *testing.T) {
	t.Parallel()

	profile := chirpProfile()
	profile["maxAllowedElevationAngleDeg"] = 30
	profile["maxAllowedAzimuthAngleDeg"] = 45

	cfg, err := DeriveConfig(context.Background(), params.NewStatic(profile))
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.MaxAllowedElevationAngleDeg)
	assert.Equal(t, 45.0, cfg.MaxAllowedAzimuthAngleDeg)
}

func TestDeriveConfigWaitsForNumTxAnt(t *testing.T) {
	t.Parallel()

	profile := chirpProfile()
	delete(profile, "numTxAnt")
	reg := params.NewStatic(profile)

	// The radar manager sets numTxAnt last; derivation must block until then.
	go func() {
		time.Sleep(150 * time.Millisecond)
		reg.Set("numTxAnt", 2)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := DeriveConfig(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.NumDopplerBins)
}

func TestDeriveConfigContextCancelled(t *testing.T) {
	t.Parallel()

	profile := chirpProfile()
	delete(profile, "numTxAnt")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := DeriveConfig(ctx, params.NewStatic(profile))
	assert.Error(t, err)
}

func TestDeriveConfigMissingKey(t *testing.T) {
	t.Parallel()

	profile := chirpProfile()
	delete(profile, "startFreq")
	_, err := DeriveConfig(context.Background(), params.NewStatic(profile))
	assert.Error(t, err)
}

func TestAngleRatios(t *testing.T) {
	t.Parallel()

	t.Run("disabled at 90 degrees", func(t *testing.T) {
		cfg := &RadarConfig{MaxAllowedElevationAngleDeg: 90, MaxAllowedAzimuthAngleDeg: 90}
		elevSq, az := cfg.angleRatios()
		assert.Equal(t, -1.0, elevSq)
		assert.Equal(t, -1.0, az)
	})

	t.Run("disabled when negative", func(t *testing.T) {
		cfg := &RadarConfig{MaxAllowedElevationAngleDeg: -5, MaxAllowedAzimuthAngleDeg: -5}
		elevSq, az := cfg.angleRatios()
		assert.Equal(t, -1.0, elevSq)
		assert.Equal(t, -1.0, az)
	})

	t.Run("45 degrees", func(t *testing.T) {
		cfg := &RadarConfig{MaxAllowedElevationAngleDeg: 45, MaxAllowedAzimuthAngleDeg: 45}
		elevSq, az := cfg.angleRatios()
		assert.InDelta(t, 1.0, elevSq, 1e-9)
		assert.InDelta(t, 1.0, az, 1e-9)
	})
}
