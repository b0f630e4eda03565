package vantage

import (
	"encoding/binary"
	"testing"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/crc16"
)

func fullObservation() *types.Observation {
	return &types.Observation{
		DateTime:       1717245045, // 2024-06-01 12:30:45 UTC
		Units:          types.UnitsUS,
		OutTemp:        types.Float(72.5),
		InTemp:         types.Float(70.1),
		OutHumidity:    types.Float(45),
		InHumidity:     types.Float(40),
		Barometer:      types.Float(29.875),
		BarometerTrend: types.Int(1),
		WindSpeed:      types.Float(7),
		WindGust:       types.Float(12),
		WindDir:        types.Float(225),
		RainRate:       types.Float(0.12),
		DayRain:        types.Float(0.25),
		MonthRain:      types.Float(1.5),
		YearRain:       types.Float(10.2),
		UV:             types.Float(4.2),
		Radiation:      types.Float(640),
		ET:             types.Float(0.123),
		ForecastRule:   types.Int(45),
		Dewpoint:       types.Float(50.3),
		Windchill:      types.Float(72.5),
		Heatindex:      types.Float(73.0),
	}
}

func checkFraming(t *testing.T, buf []byte, packetType byte) {
	t.Helper()
	if len(buf) != LoopPacketLength {
		t.Fatalf("packet length = %d, want %d", len(buf), LoopPacketLength)
	}
	if string(buf[0:3]) != "LOO" {
		t.Errorf("header = % X, want LOO", buf[0:3])
	}
	if buf[4] != packetType {
		t.Errorf("packet type = %d, want %d", buf[4], packetType)
	}
	if buf[95] != 0x0A || buf[96] != 0x0D {
		t.Errorf("terminators = % X, want 0A 0D", buf[95:97])
	}
	wantCRC := crc16.Crc16(buf[0:97])
	gotCRC := binary.BigEndian.Uint16(buf[97:99])
	if gotCRC != wantCRC {
		t.Errorf("CRC = 0x%04X, want 0x%04X", gotCRC, wantCRC)
	}
	if crc16.Crc16(buf) != 0 {
		t.Errorf("full packet does not checksum to zero")
	}
}

func TestEncodeLoopFraming(t *testing.T) {
	checkFraming(t, EncodeLoop(fullObservation()), 0)
	checkFraming(t, EncodeLoop(nil), 0)
}

func TestEncodeLoop2Framing(t *testing.T) {
	checkFraming(t, EncodeLoop2(fullObservation()), 1)
	checkFraming(t, EncodeLoop2(nil), 1)
}

func TestEncodeLoopFields(t *testing.T) {
	buf := EncodeLoop(fullObservation())

	if got := binary.LittleEndian.Uint16(buf[7:9]); got != 29875 {
		t.Errorf("barometer = %d, want 29875", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[12:14])); got != 725 {
		t.Errorf("outTemp = %d, want 725", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[9:11])); got != 701 {
		t.Errorf("inTemp = %d, want 701", got)
	}
	if buf[11] != 40 {
		t.Errorf("inHumidity = %d, want 40", buf[11])
	}
	if buf[33] != 45 {
		t.Errorf("outHumidity = %d, want 45", buf[33])
	}
	if buf[14] != 7 {
		t.Errorf("windSpeed = %d, want 7", buf[14])
	}
	if got := binary.LittleEndian.Uint16(buf[16:18]); got != 225 {
		t.Errorf("windDir = %d, want 225", got)
	}
	if got := binary.LittleEndian.Uint16(buf[41:43]); got != 12 {
		t.Errorf("rainRate = %d, want 12", got)
	}
	if buf[43] != 42 {
		t.Errorf("UV = %d, want 42", buf[43])
	}
	if got := binary.LittleEndian.Uint16(buf[44:46]); got != 640 {
		t.Errorf("radiation = %d, want 640", got)
	}
	if got := binary.LittleEndian.Uint16(buf[50:52]); got != 25 {
		t.Errorf("dayRain = %d, want 25", got)
	}
	if got := binary.LittleEndian.Uint16(buf[54:56]); got != 1020 {
		t.Errorf("yearRain = %d, want 1020", got)
	}
	if buf[90] != 45 {
		t.Errorf("forecastRule = %d, want 45", buf[90])
	}
}

// Missing fields must encode as their dash, never as zero, except the
// rain counters.
func TestEncodeLoopDashes(t *testing.T) {
	buf := EncodeLoop(&types.Observation{Units: types.UnitsUS})

	if got := int16(binary.LittleEndian.Uint16(buf[12:14])); got != DashInt16Low {
		t.Errorf("missing outTemp = %d, want %d", got, DashInt16Low)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[9:11])); got != DashInt16Low {
		t.Errorf("missing inTemp = %d, want %d", got, DashInt16Low)
	}
	if buf[11] != DashByte || buf[33] != DashByte {
		t.Errorf("missing humidities = %d/%d, want 255/255", buf[11], buf[33])
	}
	if buf[14] != DashByte {
		t.Errorf("missing windSpeed = %d, want 255", buf[14])
	}
	if buf[43] != DashByte {
		t.Errorf("missing UV = %d, want 255", buf[43])
	}
	if got := binary.LittleEndian.Uint16(buf[44:46]); got != DashUint16 {
		t.Errorf("missing radiation = %d, want %d", got, DashUint16)
	}
	// Missing barometer rewrites to 29.920 inHg.
	if got := binary.LittleEndian.Uint16(buf[7:9]); got != 29920 {
		t.Errorf("missing barometer = %d, want 29920", got)
	}
	// Rain counters dash to zero.
	if got := binary.LittleEndian.Uint16(buf[50:52]); got != 0 {
		t.Errorf("missing dayRain = %d, want 0", got)
	}
}

func TestBarTrendCode(t *testing.T) {
	tests := []struct {
		trend *int
		want  byte
	}{
		{types.Int(-2), 196},
		{types.Int(-1), 236},
		{types.Int(0), 0},
		{types.Int(1), 20},
		{types.Int(2), 60},
		{types.Int(7), 0},
		{types.Int(-5), 0},
		{nil, 0},
	}
	for _, tt := range tests {
		obs := &types.Observation{Units: types.UnitsUS, BarometerTrend: tt.trend}
		buf := EncodeLoop(obs)
		if buf[3] != tt.want {
			t.Errorf("trend %v -> byte %d, want %d", tt.trend, buf[3], tt.want)
		}
	}
}

func TestUVSaturation(t *testing.T) {
	obs := &types.Observation{Units: types.UnitsUS, UV: types.Float(30)}
	buf := EncodeLoop(obs)
	if buf[43] != 255 {
		t.Errorf("UV 30 = %d, want 255 (saturated)", buf[43])
	}
}

func TestZeroBarometerRewrite(t *testing.T) {
	obs := &types.Observation{Units: types.UnitsUS, Barometer: types.Float(0)}
	buf := EncodeLoop(obs)
	if got := binary.LittleEndian.Uint16(buf[7:9]); got != 29920 {
		t.Errorf("zero barometer = %d, want 29920", got)
	}
}

func TestEncodeLoop2Derived(t *testing.T) {
	buf := EncodeLoop2(fullObservation())

	if got := int16(binary.LittleEndian.Uint16(buf[30:32])); got != 50 {
		t.Errorf("dewpoint = %d, want 50", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[35:37])); got != 73 {
		t.Errorf("heatindex = %d, want 73", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[37:39])); got != 72 {
		t.Errorf("windchill = %d, want 72", got)
	}
	// Gust on the wire is mph*10.
	if got := binary.LittleEndian.Uint16(buf[22:24]); got != 120 {
		t.Errorf("gust = %d, want 120", got)
	}
	if buf[60] != 2 {
		t.Errorf("bar reduction method = %d, want 2", buf[60])
	}
}
