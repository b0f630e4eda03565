// Package vantage encodes the binary wire formats of the Davis Vantage
// console protocol: LOOP and LOOP2 live packets, Rev B archive records,
// archive download pages, and the Davis date/time bitfields.
//
// Field offsets follow the Davis Vantage serial protocol reference.
// Encoders are pure functions from an Observation snapshot to a
// fixed-length buffer; missing fields emit the documented dash value
// for their width and signedness.
package vantage

// Single-byte control codes used throughout the protocol.
const (
	ACK    = 0x06
	NAK    = 0x21
	ESC    = 0x1B
	CANCEL = 0x18
)

// Packet and record sizes on the wire.
const (
	LoopPacketLength    = 99
	ArchiveRecordLength = 52
	PageLength          = 267
	RecordsPerPage      = 5
)

// Station types reported by the WRD command.
const (
	StationTypeVP2 = 16
	StationTypeVue = 17
)

// Dash values: what a field encodes when the observation has no data
// for it. Width- and signedness-dependent, per the protocol reference.
const (
	DashByte      = 0xFF
	DashInt16Low  = 32767
	DashInt16High = -32768
	DashUint16    = 32767
)

// defaultBarometer is substituted for a zero or missing barometer so
// receivers that sanity-check pressure do not drop the packet
// (29.920 inHg on the wire).
const defaultBarometer = 29920

// barTrendCode maps the signed three-hour barometer trend (-2..2) to
// the unsigned byte the console transmits. Anything else is "steady".
func barTrendCode(trend *int) byte {
	if trend == nil {
		return 0
	}
	switch *trend {
	case -2:
		return 196
	case -1:
		return 236
	case 1:
		return 20
	case 2:
		return 60
	default:
		return 0
	}
}
