package pointcloud

import "gonum.org/v1/gonum/stat"

// Summary describes one cloud for diagnostics. Intensity statistics are in
// decibels.
type Summary struct {
	NumPoints       int
	MeanIntensity   float64
	StdDevIntensity float64
	MaxRange        float64
	MaxAbsDoppler   float64
}

// Summarize computes diagnostic statistics over a cloud. An empty cloud yields
// a zero Summary.
func Summarize(c *Cloud) Summary {
	s := Summary{NumPoints: len(c.Points)}
	if len(c.Points) == 0 {
		return s
	}

	intensities := make([]float64, len(c.Points))
	for i, p := range c.Points {
		intensities[i] = float64(p.Intensity)
		if r := float64(p.Range); r > s.MaxRange {
			s.MaxRange = r
		}
		d := float64(p.Doppler)
		if d < 0 {
			d = -d
		}
		if d > s.MaxAbsDoppler {
			s.MaxAbsDoppler = d
		}
	}

	s.MeanIntensity = stat.Mean(intensities, nil)
	if len(intensities) > 1 {
		s.StdDevIntensity = stat.StdDev(intensities, nil)
	}
	return s
}
