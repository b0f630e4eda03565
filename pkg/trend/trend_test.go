package trend

import (
	"testing"
	"time"
)

func samplesWithSlope(base time.Time, start, perHour float64, hours int) []Sample {
	var out []Sample
	for i := 0; i <= hours*4; i++ {
		dt := time.Duration(i) * 15 * time.Minute
		out = append(out, Sample{
			Time:      base.Add(dt),
			Barometer: start + perHour*dt.Hours(),
		})
	}
	return out
}

func TestCode(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		perHour float64
		want    int
	}{
		{"rising rapidly", 0.04, 2},
		{"rising slowly", 0.01, 1},
		{"steady", 0.0, 0},
		{"falling slowly", -0.01, -1},
		{"falling rapidly", -0.04, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := samplesWithSlope(base, 29.90, tt.perHour, 3)
			now := base.Add(3 * time.Hour)
			code, ok := Code(samples, now)
			if !ok {
				t.Fatal("expected a trend")
			}
			if code != tt.want {
				t.Errorf("code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCodeInsufficientHistory(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	if _, ok := Code(nil, base); ok {
		t.Error("no samples should yield no trend")
	}
	if _, ok := Code([]Sample{{Time: base, Barometer: 29.9}}, base); ok {
		t.Error("one sample should yield no trend")
	}
}

// Samples older than the window must not drag the fit.
func TestCodeIgnoresOldSamples(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now := base.Add(12 * time.Hour)

	samples := []Sample{
		// Ancient falling pressure, outside the window.
		{Time: base, Barometer: 31.0},
		{Time: base.Add(time.Hour), Barometer: 30.5},
		// Recent steady pressure.
		{Time: now.Add(-2 * time.Hour), Barometer: 29.90},
		{Time: now.Add(-time.Hour), Barometer: 29.90},
		{Time: now, Barometer: 29.90},
	}

	code, ok := Code(samples, now)
	if !ok {
		t.Fatal("expected a trend")
	}
	if code != 0 {
		t.Errorf("code = %d, want 0 (old samples ignored)", code)
	}
}
