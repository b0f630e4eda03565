// Package types defines the data structures shared between the
// collector-facing ingest side and the console emulation engine.
package types

import "time"

// Unit systems for Observation values. Packet encoders require US
// units (°F, inHg, mph, inches); observations published in another
// system are rejected at the ingest boundary.
const (
	UnitsUS     = 0x01
	UnitsMetric = 0x10
)

// Observation is a single set of readings pushed by the upstream
// collector. Every sensor field is optional: a nil pointer means the
// collector has no data for that field, which is distinct from a zero
// reading and encodes as the Davis dash value on the wire.
//
// Values are US customary: temperatures in °F, barometer in inHg, wind
// in mph, rain in inches, ET in inches, radiation in W/m².
type Observation struct {
	DateTime int64 `json:"dateTime"`
	Units    int   `json:"usUnits"`

	OutTemp        *float64 `json:"outTemp,omitempty"`
	InTemp         *float64 `json:"inTemp,omitempty"`
	OutHumidity    *float64 `json:"outHumidity,omitempty"`
	InHumidity     *float64 `json:"inHumidity,omitempty"`
	Barometer      *float64 `json:"barometer,omitempty"`
	BarometerTrend *int     `json:"barometerTrend,omitempty"`
	WindSpeed      *float64 `json:"windSpeed,omitempty"`
	WindGust       *float64 `json:"windGust,omitempty"`
	WindDir        *float64 `json:"windDir,omitempty"`
	RainRate       *float64 `json:"rainRate,omitempty"`
	Rain           *float64 `json:"rain,omitempty"`
	DayRain        *float64 `json:"dayRain,omitempty"`
	MonthRain      *float64 `json:"monthRain,omitempty"`
	YearRain       *float64 `json:"yearRain,omitempty"`
	UV             *float64 `json:"UV,omitempty"`
	Radiation      *float64 `json:"radiation,omitempty"`
	ET             *float64 `json:"ET,omitempty"`
	ForecastRule   *int     `json:"forecastRule,omitempty"`
	Sunrise        *int64   `json:"sunrise,omitempty"`
	Sunset         *int64   `json:"sunset,omitempty"`
	Dewpoint       *float64 `json:"dewpoint,omitempty"`
	Windchill      *float64 `json:"windchill,omitempty"`
	Heatindex      *float64 `json:"heatindex,omitempty"`
}

// Time returns the observation's own timestamp.
func (o *Observation) Time() time.Time {
	return time.Unix(o.DateTime, 0)
}

// Float returns a pointer to v, for building observations literally.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Epoch returns a pointer to v.
func Epoch(v int64) *int64 { return &v }
