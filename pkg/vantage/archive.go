package vantage

import (
	"encoding/binary"
	"time"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/crc16"
)

// EncodeArchiveRecord builds a 52-byte Rev B archive record from an
// archived observation. The record's timestamp comes from the
// observation's own dateTime.
func EncodeArchiveRecord(obs *types.Observation) []byte {
	p := make([]byte, ArchiveRecordLength)
	ts := time.Unix(obs.DateTime, 0)

	binary.LittleEndian.PutUint16(p[0:2], DateStamp(ts))
	binary.LittleEndian.PutUint16(p[2:4], TimeStamp(ts))

	// Outside temperature: average, high, low. Archived records carry a
	// single sample, so all three read the same value; the high slot
	// dashes low and the others dash high, per Rev B.
	binary.LittleEndian.PutUint16(p[4:6], uint16(scaledI16(obs.OutTemp, 10, DashInt16Low)))
	binary.LittleEndian.PutUint16(p[6:8], uint16(scaledI16(obs.OutTemp, 10, DashInt16High)))
	binary.LittleEndian.PutUint16(p[8:10], uint16(scaledI16(obs.OutTemp, 10, DashInt16Low)))

	binary.LittleEndian.PutUint16(p[10:12], scaledU16(obs.Rain, 100, 0))
	binary.LittleEndian.PutUint16(p[12:14], scaledU16(obs.RainRate, 100, 0))
	binary.LittleEndian.PutUint16(p[14:16], barometerWire(obs.Barometer))
	binary.LittleEndian.PutUint16(p[16:18], scaledU16(obs.Radiation, 1, DashUint16))
	binary.LittleEndian.PutUint16(p[18:20], 100) // wind sample count

	binary.LittleEndian.PutUint16(p[20:22], uint16(scaledI16(obs.InTemp, 10, DashInt16Low)))
	p[22] = scaledByte(obs.InHumidity, 1, DashByte)
	p[23] = scaledByte(obs.OutHumidity, 1, DashByte)

	p[24] = scaledByte(obs.WindSpeed, 1, DashByte)
	p[25] = scaledByte(obs.WindGust, 1, 0)
	p[26] = windDirCode(obs.WindDir) // direction of high wind
	p[27] = windDirCode(obs.WindDir) // prevailing direction

	p[28] = uvByte(obs.UV)
	p[29] = scaledByte(obs.ET, 1000, 0)

	binary.LittleEndian.PutUint16(p[30:32], scaledU16(obs.Radiation, 1, 0)) // high solar
	p[32] = scaledByte(obs.UV, 10, 0)                                      // high UV
	if obs.ForecastRule != nil {
		p[33] = byte(*obs.ForecastRule)
	} else {
		p[33] = 193
	}

	fill(p, 34, 36, DashByte) // leaf temperatures
	fill(p, 36, 38, DashByte) // leaf wetness
	fill(p, 38, 42, DashByte) // soil temperatures
	p[42] = 0x00              // record type: Rev B
	fill(p, 43, 45, DashByte) // extra humidities
	fill(p, 45, 48, DashByte) // extra temperatures
	fill(p, 48, 52, DashByte) // soil moistures

	return p
}

// EncodePage assembles one 267-byte download page: a sequence byte,
// five records (0xFF-padded), four unused zero bytes and a big-endian
// CRC over the preceding 265 bytes.
func EncodePage(seq byte, records [][]byte) []byte {
	p := make([]byte, 0, PageLength)
	p = append(p, seq)
	for i := 0; i < RecordsPerPage; i++ {
		if i < len(records) {
			p = append(p, records[i]...)
		} else {
			pad := make([]byte, ArchiveRecordLength)
			fill(pad, 0, ArchiveRecordLength, DashByte)
			p = append(p, pad...)
		}
	}
	p = append(p, 0x00, 0x00, 0x00, 0x00)
	crc := crc16.Crc16(p)
	p = append(p, byte(crc>>8), byte(crc))
	return p
}

// EncodeDownloadHeader builds the six-byte DMPAFT reply header: page
// count, index of the first record within the first page (always 0),
// and the CRC over those four bytes.
func EncodeDownloadHeader(pages uint16) []byte {
	h := make([]byte, 6)
	binary.LittleEndian.PutUint16(h[0:2], pages)
	binary.LittleEndian.PutUint16(h[2:4], 0)
	binary.BigEndian.PutUint16(h[4:6], crc16.Crc16(h[:4]))
	return h
}
