package pointcloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCloud(t *testing.T) {
	t.Parallel()

	points := []RadarPoint{{X: 1}, {X: 2}}
	c := NewCloud(42, points)

	assert.Equal(t, DefaultFrameID, c.FrameID)
	assert.Equal(t, uint32(42), c.FrameNumber)
	assert.Equal(t, uint32(1), c.Height)
	assert.Equal(t, uint32(2), c.Width)
	assert.True(t, c.IsDense)
	assert.False(t, c.Stamp.IsZero())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("empty cloud", func(t *testing.T) {
		s := Summarize(NewCloud(1, nil))
		assert.Equal(t, Summary{}, s)
	})

	t.Run("statistics", func(t *testing.T) {
		c := NewCloud(1, []RadarPoint{
			{Intensity: 10, Range: 1.5, Doppler: -3},
			{Intensity: 20, Range: 0.5, Doppler: 2},
		})
		s := Summarize(c)
		assert.Equal(t, 2, s.NumPoints)
		assert.InDelta(t, 15.0, s.MeanIntensity, 1e-9)
		assert.InDelta(t, 7.0710678, s.StdDevIntensity, 1e-6)
		assert.InDelta(t, 1.5, s.MaxRange, 1e-9)
		assert.InDelta(t, 3.0, s.MaxAbsDoppler, 1e-9)
	})

	t.Run("single point has no spread", func(t *testing.T) {
		s := Summarize(NewCloud(1, []RadarPoint{{Intensity: 12}}))
		assert.Equal(t, 1, s.NumPoints)
		assert.InDelta(t, 12.0, s.MeanIntensity, 1e-9)
		assert.Zero(t, s.StdDevIntensity)
	})
}
