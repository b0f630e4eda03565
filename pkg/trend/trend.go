// Package trend derives the Davis three-hour barometric trend code
// from a history of pressure samples when the upstream collector does
// not supply one.
package trend

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window is how much pressure history the trend looks back over.
const Window = 3 * time.Hour

// Projected three-hour change thresholds, in inHg, separating steady,
// slow and rapid trends. These match the console's own definitions.
const (
	slowChange  = 0.02
	rapidChange = 0.06
)

// Sample is one barometer reading with its publication time.
type Sample struct {
	Time      time.Time
	Barometer float64
}

// Code fits a least-squares line through the samples inside the window
// and maps the projected three-hour change onto the -2..2 trend codes.
// ok is false when there is not enough history to call a trend (fewer
// than two samples, or all samples at one instant).
func Code(samples []Sample, now time.Time) (code int, ok bool) {
	cutoff := now.Add(-Window)
	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Time.Before(cutoff) {
			continue
		}
		xs = append(xs, s.Time.Sub(cutoff).Hours())
		ys = append(ys, s.Barometer)
	}
	if len(xs) < 2 || xs[0] == xs[len(xs)-1] {
		return 0, false
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	change := slope * Window.Hours()

	switch {
	case change >= rapidChange:
		return 2, true
	case change >= slowChange:
		return 1, true
	case change <= -rapidChange:
		return -2, true
	case change <= -slowChange:
		return -1, true
	default:
		return 0, true
	}
}
