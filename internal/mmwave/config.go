package mmwave

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/params"
)

// RadarConfig holds the conversion constants derived from the sensor's chirp
// profile. Immutable after construction.
type RadarConfig struct {
	NumRangeBins           int
	NumDopplerBins         int
	RangeIdxToMeters       float64
	DopplerResolutionToMps float64

	// Angle limits in degrees. A value outside [0, 90) disables the
	// corresponding filter.
	MaxAllowedElevationAngleDeg float64
	MaxAllowedAzimuthAngleDeg   float64
}

// Chirp parameter keys the registry must provide before the data path starts.
const (
	keyNumTxAnt         = "numTxAnt"
	keyNumAdcSamples    = "numAdcSamples"
	keyChirpEndIdx      = "chirpEndIdx"
	keyChirpStartIdx    = "chirpStartIdx"
	keyNumLoops         = "numLoops"
	keyDigOutSampleRate = "digOutSampleRate"
	keyFreqSlopeConst   = "freqSlopeConst"
	keyStartFreq        = "startFreq"
	keyIdleTime         = "idleTime"
	keyRampEndTime      = "rampEndTime"

	keyMaxElevationAngleDeg = "maxAllowedElevationAngleDeg"
	keyMaxAzimuthAngleDeg   = "maxAllowedAzimuthAngleDeg"
)

// DeriveConfig blocks until the chirp profile is complete (the radar manager
// sets numTxAnt last), then computes the conversion constants.
func DeriveConfig(ctx context.Context, reg params.Registry) (*RadarConfig, error) {
	if err := params.WaitFor(ctx, reg, keyNumTxAnt, 100*time.Millisecond); err != nil {
		return nil, err
	}

	ints := map[string]int{
		keyNumTxAnt:      0,
		keyNumAdcSamples: 0,
		keyChirpEndIdx:   0,
		keyChirpStartIdx: 0,
		keyNumLoops:      0,
	}
	for key := range ints {
		v, err := reg.Int(key)
		if err != nil {
			return nil, fmt.Errorf("derive radar config: %w", err)
		}
		ints[key] = v
	}

	floats := map[string]float64{
		keyDigOutSampleRate: 0,
		keyFreqSlopeConst:   0,
		keyStartFreq:        0,
		keyIdleTime:         0,
		keyRampEndTime:      0,
	}
	for key := range floats {
		v, err := reg.Float(key)
		if err != nil {
			return nil, fmt.Errorf("derive radar config: %w", err)
		}
		floats[key] = v
	}

	numTxAnt := ints[keyNumTxAnt]
	if numTxAnt <= 0 {
		return nil, fmt.Errorf("derive radar config: numTxAnt must be positive, got %d", numTxAnt)
	}
	numChirpsPerFrame := (ints[keyChirpEndIdx] - ints[keyChirpStartIdx] + 1) * ints[keyNumLoops]
	if numChirpsPerFrame <= 0 {
		return nil, fmt.Errorf("derive radar config: invalid chirp profile, numChirpsPerFrame=%d", numChirpsPerFrame)
	}

	cfg := &RadarConfig{
		NumRangeBins:   nextPow2(ints[keyNumAdcSamples]),
		NumDopplerBins: numChirpsPerFrame / numTxAnt,

		// Angle limits default to 90 degrees, which disables filtering.
		MaxAllowedElevationAngleDeg: 90,
		MaxAllowedAzimuthAngleDeg:   90,
	}
	cfg.RangeIdxToMeters = 300 * floats[keyDigOutSampleRate] /
		(2 * floats[keyFreqSlopeConst] * 1e3 * float64(cfg.NumRangeBins))
	cfg.DopplerResolutionToMps = 3e8 /
		(2 * floats[keyStartFreq] * 1e9 * (floats[keyIdleTime] + floats[keyRampEndTime]) * 1e-6 * float64(numChirpsPerFrame))

	if v, err := reg.Float(keyMaxElevationAngleDeg); err == nil {
		cfg.MaxAllowedElevationAngleDeg = v
	}
	if v, err := reg.Float(keyMaxAzimuthAngleDeg); err == nil {
		cfg.MaxAllowedAzimuthAngleDeg = v
	}

	monitoring.Logf("mmwave: configured numRangeBins=%d numDopplerBins=%d rangeIdxToMeters=%f dopplerResolutionToMps=%f",
		cfg.NumRangeBins, cfg.NumDopplerBins, cfg.RangeIdxToMeters, cfg.DopplerResolutionToMps)

	return cfg, nil
}

// angleRatios precomputes the filter thresholds. A ratio of -1 means the
// corresponding filter is disabled.
func (c *RadarConfig) angleRatios() (maxElevSq, maxAzRatio float64) {
	maxElevSq, maxAzRatio = -1, -1
	if c.MaxAllowedElevationAngleDeg >= 0 && c.MaxAllowedElevationAngleDeg < 90 {
		r := math.Tan(c.MaxAllowedElevationAngleDeg * math.Pi / 180)
		maxElevSq = r * r
	}
	if c.MaxAllowedAzimuthAngleDeg >= 0 && c.MaxAllowedAzimuthAngleDeg < 90 {
		maxAzRatio = math.Tan(c.MaxAllowedAzimuthAngleDeg * math.Pi / 180)
	}
	return maxElevSq, maxAzRatio
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
