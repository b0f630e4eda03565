package vantage

import (
	"encoding/binary"
	"math"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/crc16"
)

// Conversion helpers shared by the live-packet and archive encoders.
// Each scales an optional observation value onto the wire and falls
// back to the field's dash when the value is absent.

func scaledI16(v *float64, scale float64, dash int16) int16 {
	if v == nil {
		return dash
	}
	return int16(*v * scale)
}

func scaledU16(v *float64, scale float64, dash uint16) uint16 {
	if v == nil {
		return dash
	}
	return uint16(math.Round(*v * scale))
}

func scaledByte(v *float64, scale float64, dash byte) byte {
	if v == nil {
		return dash
	}
	return byte(*v * scale)
}

// uvByte scales UV index by ten and saturates at the dash value, which
// doubles as the sentinel for "off the scale" (beyond 25.5).
func uvByte(v *float64) byte {
	if v == nil {
		return DashByte
	}
	if *v >= 25.5 {
		return DashByte
	}
	return byte(*v * 10)
}

// barometerWire scales inHg to thousandths. Zero and missing both
// rewrite to 29.920 inHg so stale receivers accept the packet.
func barometerWire(v *float64) uint16 {
	if v == nil || *v == 0 {
		return defaultBarometer
	}
	return uint16(*v * 1000)
}

func fill(buf []byte, lo, hi int, b byte) {
	for i := lo; i < hi; i++ {
		buf[i] = b
	}
}

// EncodeLoop builds a 99-byte LOOP (packet type 0) from an observation
// snapshot. obs may be nil, in which case every field dashes.
func EncodeLoop(obs *types.Observation) []byte {
	if obs == nil {
		obs = &types.Observation{Units: types.UnitsUS}
	}

	p := make([]byte, LoopPacketLength)
	copy(p[0:3], "LOO")
	p[3] = barTrendCode(obs.BarometerTrend)
	p[4] = 0 // packet type: LOOP

	binary.LittleEndian.PutUint16(p[5:7], 0) // next archive record
	binary.LittleEndian.PutUint16(p[7:9], barometerWire(obs.Barometer))
	binary.LittleEndian.PutUint16(p[9:11], uint16(scaledI16(obs.InTemp, 10, DashInt16Low)))
	p[11] = scaledByte(obs.InHumidity, 1, DashByte)
	binary.LittleEndian.PutUint16(p[12:14], uint16(scaledI16(obs.OutTemp, 10, DashInt16Low)))
	p[14] = scaledByte(obs.WindSpeed, 1, DashByte)
	p[15] = scaledByte(obs.WindSpeed, 1, DashByte) // 10-min average
	binary.LittleEndian.PutUint16(p[16:18], scaledU16(obs.WindDir, 1, 0))

	fill(p, 18, 25, DashByte) // extra temperatures
	fill(p, 25, 29, DashByte) // soil temperatures
	fill(p, 29, 33, DashByte) // leaf temperatures

	p[33] = scaledByte(obs.OutHumidity, 1, DashByte)
	fill(p, 34, 41, DashByte) // extra humidities

	binary.LittleEndian.PutUint16(p[41:43], scaledU16(obs.RainRate, 100, 0))
	p[43] = uvByte(obs.UV)
	binary.LittleEndian.PutUint16(p[44:46], scaledU16(obs.Radiation, 1, DashUint16))
	binary.LittleEndian.PutUint16(p[46:48], 0) // storm rain
	binary.LittleEndian.PutUint16(p[48:50], 0) // storm start date
	binary.LittleEndian.PutUint16(p[50:52], scaledU16(obs.DayRain, 100, 0))
	binary.LittleEndian.PutUint16(p[52:54], scaledU16(obs.MonthRain, 100, 0))
	binary.LittleEndian.PutUint16(p[54:56], scaledU16(obs.YearRain, 100, 0))
	binary.LittleEndian.PutUint16(p[56:58], scaledU16(obs.ET, 1000, 0)) // day ET
	binary.LittleEndian.PutUint16(p[58:60], 0)                          // month ET
	binary.LittleEndian.PutUint16(p[60:62], 0)                          // year ET

	fill(p, 62, 66, DashByte) // soil moistures
	fill(p, 66, 70, DashByte) // leaf wetnesses
	fill(p, 70, 86, 0x00)     // alarm blocks

	p[86] = 0x00                               // transmitter battery
	binary.LittleEndian.PutUint16(p[87:89], 0) // console battery voltage
	p[89] = 0x00                               // forecast icon
	if obs.ForecastRule != nil {
		p[90] = byte(*obs.ForecastRule)
	}

	var sunrise, sunset int64
	if obs.Sunrise != nil {
		sunrise = *obs.Sunrise
	}
	if obs.Sunset != nil {
		sunset = *obs.Sunset
	}
	binary.LittleEndian.PutUint16(p[91:93], davisTimeOfDay(sunrise))
	binary.LittleEndian.PutUint16(p[93:95], davisTimeOfDay(sunset))

	p[95] = 0x0A
	p[96] = 0x0D
	binary.BigEndian.PutUint16(p[97:99], crc16.Crc16(p[:97]))
	return p
}
