// Package solar computes sunrise and sunset times for the configured
// station location, used to fill the LOOP packet's sunrise/sunset
// fields when the collector does not supply them.
package solar

import (
	"math"
	"time"
)

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }

func fixAngle(a float64) float64 {
	a = math.Mod(a, 360.0)
	if a < 0 {
		a += 360.0
	}
	return a
}

func jdFromTime(t time.Time) float64 {
	return float64(t.UTC().Unix())/86400.0 + 2440587.5
}

// equationOfTime returns the equation of time in minutes for the given
// instant: the offset between apparent and mean solar time.
func equationOfTime(t time.Time) float64 {
	jd := jdFromTime(t)
	T := (jd - 2451545.0) / 36525.0 // Julian centuries since J2000.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))            // mean longitude of the Sun (degrees)
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))             // mean anomaly of the Sun (degrees)
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)                  // eccentricity of Earth's orbit
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60 // mean obliquity of the ecliptic (degrees)

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	return radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4 // 4 min per degree
}

// CalculateSunriseSunset returns sunrise and sunset as minutes from
// midnight UTC for the given day-of-year at the specified latitude and
// longitude. Returns (-1, -1) for polar day or polar night.
func CalculateSunriseSunset(year, dayOfYear int, latitude, longitude float64) (sunriseMinutes, sunsetMinutes int) {
	doy := float64(dayOfYear)
	innerAngle := degToRad(356.6 + 0.9856*doy)
	outerAngle := degToRad(278.97 + 0.9856*doy + 1.9165*math.Sin(innerAngle))
	declinationRad := math.Asin(0.39785 * math.Sin(outerAngle))

	latRad := degToRad(latitude)

	// Hour angle at the horizon: cos(H) = -tan(lat)*tan(decl).
	cosH := -math.Tan(latRad) * math.Tan(declinationRad)
	if cosH < -1.0 || cosH > 1.0 {
		return -1, -1
	}
	hourAngleMinutes := radToDeg(math.Acos(cosH)) / 15.0 * 60.0

	// Solar noon in UTC, shifted by longitude (4 min/degree) and the
	// equation of time.
	refTime := time.Date(year, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, dayOfYear-1)
	solarNoonUTC := 720.0 - longitude*4.0 - equationOfTime(refTime)

	sunriseUTC := math.Mod(solarNoonUTC-hourAngleMinutes+1440, 1440)
	sunsetUTC := math.Mod(solarNoonUTC+hourAngleMinutes+1440, 1440)

	return int(math.Round(sunriseUTC)), int(math.Round(sunsetUTC))
}

// SunTimes returns today's sunrise and sunset as epoch seconds for the
// given location. ok is false under polar conditions.
func SunTimes(now time.Time, latitude, longitude float64) (sunrise, sunset int64, ok bool) {
	utc := now.UTC()
	riseMin, setMin := CalculateSunriseSunset(utc.Year(), utc.YearDay(), latitude, longitude)
	if riseMin < 0 {
		return 0, 0, false
	}

	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	sunrise = midnight.Add(time.Duration(riseMin) * time.Minute).Unix()
	sunset = midnight.Add(time.Duration(setMin) * time.Minute).Unix()
	return sunrise, sunset, true
}
