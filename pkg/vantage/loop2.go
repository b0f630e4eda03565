package vantage

import (
	"encoding/binary"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/crc16"
)

// derivedI16 places a derived temperature (dewpoint, wind chill, heat
// index) on the wire. These are whole degrees in a signed 16-bit field;
// 255 is the dash the console transmits for them.
func derivedI16(v *float64) int16 {
	if v == nil {
		return 255
	}
	return int16(*v)
}

// EncodeLoop2 builds a 99-byte LOOP2 (packet type 1). LOOP2 replaces
// the sensor banks of LOOP with derived quantities and wind averages.
func EncodeLoop2(obs *types.Observation) []byte {
	if obs == nil {
		obs = &types.Observation{Units: types.UnitsUS}
	}

	p := make([]byte, LoopPacketLength)
	copy(p[0:3], "LOO")
	p[3] = barTrendCode(obs.BarometerTrend)
	p[4] = 1 // packet type: LOOP2

	binary.LittleEndian.PutUint16(p[5:7], 0x7FFF) // unused
	binary.LittleEndian.PutUint16(p[7:9], barometerWire(obs.Barometer))
	binary.LittleEndian.PutUint16(p[9:11], uint16(scaledI16(obs.InTemp, 10, DashInt16Low)))
	p[11] = scaledByte(obs.InHumidity, 1, DashByte)
	binary.LittleEndian.PutUint16(p[12:14], uint16(scaledI16(obs.OutTemp, 10, DashInt16Low)))
	p[14] = scaledByte(obs.WindSpeed, 1, DashByte)
	p[15] = DashByte
	binary.LittleEndian.PutUint16(p[16:18], scaledU16(obs.WindDir, 1, 0))

	// Wind averages (mph*10): 10-minute, 2-minute, then the 10-minute
	// gust and its direction. The collector supplies one speed and one
	// gust, so the averages mirror the current speed.
	binary.LittleEndian.PutUint16(p[18:20], scaledU16(obs.WindSpeed, 10, 0))
	binary.LittleEndian.PutUint16(p[20:22], scaledU16(obs.WindSpeed, 10, 0))
	gust := obs.WindGust
	if gust == nil {
		gust = obs.WindSpeed
	}
	binary.LittleEndian.PutUint16(p[22:24], scaledU16(gust, 10, 0))
	binary.LittleEndian.PutUint16(p[24:26], scaledU16(obs.WindDir, 1, 0))

	binary.LittleEndian.PutUint16(p[26:28], 0x7FFF) // unused
	binary.LittleEndian.PutUint16(p[28:30], 0x7FFF) // unused

	binary.LittleEndian.PutUint16(p[30:32], uint16(derivedI16(obs.Dewpoint)))
	p[32] = DashByte
	p[33] = scaledByte(obs.OutHumidity, 1, DashByte)
	p[34] = DashByte
	binary.LittleEndian.PutUint16(p[35:37], uint16(derivedI16(obs.Heatindex)))
	binary.LittleEndian.PutUint16(p[37:39], uint16(derivedI16(obs.Windchill)))
	binary.LittleEndian.PutUint16(p[39:41], 255) // THSW index, not derived

	binary.LittleEndian.PutUint16(p[41:43], scaledU16(obs.RainRate, 100, 0))
	p[43] = uvByte(obs.UV)
	binary.LittleEndian.PutUint16(p[44:46], scaledU16(obs.Radiation, 1, DashUint16))
	binary.LittleEndian.PutUint16(p[46:48], 0) // storm rain
	binary.LittleEndian.PutUint16(p[48:50], 0) // storm start date
	binary.LittleEndian.PutUint16(p[50:52], scaledU16(obs.DayRain, 100, 0))
	binary.LittleEndian.PutUint16(p[52:54], 0) // 15-minute rain
	binary.LittleEndian.PutUint16(p[54:56], 0) // hourly rain
	binary.LittleEndian.PutUint16(p[56:58], scaledU16(obs.ET, 1000, 0))
	binary.LittleEndian.PutUint16(p[58:60], 0) // 24-hour rain

	p[60] = 2 // barometric reduction method: NOAA
	binary.LittleEndian.PutUint16(p[61:63], 0)
	binary.LittleEndian.PutUint16(p[63:65], 0)
	binary.LittleEndian.PutUint16(p[65:67], barometerWire(obs.Barometer))
	binary.LittleEndian.PutUint16(p[67:69], barometerWire(obs.Barometer))
	binary.LittleEndian.PutUint16(p[69:71], barometerWire(obs.Barometer))

	fill(p, 71, 95, DashByte)

	p[95] = 0x0A
	p[96] = 0x0D
	binary.BigEndian.PutUint16(p[97:99], crc16.Crc16(p[:97]))
	return p
}
