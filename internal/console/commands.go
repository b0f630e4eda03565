package console

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/wlipd/pkg/crc16"
	"github.com/chrissnell/wlipd/pkg/vantage"
)

// dispatch routes one framed command. It returns false when the
// connection must close (watchdog disconnect, dead peer). A panic in a
// handler is logged and answered with a NAK so the client can recover.
func (e *Engine) dispatch(ctx context.Context, cmd string, raw []byte) (alive bool) {
	alive = true
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("command %q failed: %v", cmd, r)
			e.write([]byte{vantage.NAK})
		}
	}()

	// A known spurious binary probe; real consoles NAK it.
	if bytes.Contains(raw, []byte{0x12, 0x4D}) {
		return e.write([]byte{vantage.NAK}) == nil
	}

	fields := strings.Fields(cmd)
	switch fields[0] {
	case "TEST":
		return e.write([]byte("\n\rTEST\n\r")) == nil

	case "WRD":
		return e.write([]byte{vantage.ACK, byte(e.station.StationType)}) == nil

	case "RXTEST":
		return e.write([]byte("\n\rOK\n\r")) == nil

	case "RXCHECK":
		return e.write([]byte("\n\rOK\n\r12000 5 0 2500 10\n\r")) == nil

	case "VER":
		return e.write([]byte("\n\rOK\n\rMay  1 2012\n\r")) == nil

	case "NVER":
		return e.write([]byte("\n\rOK\n\r1.90\n\r")) == nil

	case "RECEIVERS":
		// Bit 0 set: an ISS on transmitter ID 1.
		return e.write([]byte("\n\rOK\n\r\x01")) == nil

	case "GETTIME":
		return e.handleGetTime()

	case "SETTIME":
		return e.handleSetTime()

	case "EEBRD":
		return e.handleEEBRD(fields)

	case "EERD":
		return e.handleEERD(fields)

	case "EEWR":
		return e.handleEEWR(fields)

	case "DMPAFT":
		return e.handleDmpAft(ctx)

	case "DMP":
		return e.handleDmp(ctx)

	case "LOOP":
		return e.handleLoop(ctx, parseCount(fields), false)

	case "LPS":
		return e.handleLoop(ctx, parseCount(fields), e.station.Loop2ForLPS)

	case "HILOWS":
		return e.handleHiLows()

	case "BARREAD":
		payload := []byte{0x00, 0x00}
		crc := crc16.Crc16(payload)
		return e.write([]byte{vantage.ACK, payload[0], payload[1], byte(crc >> 8), byte(crc)}) == nil

	case "BARDATA":
		return e.handleBarData()

	case "STR":
		return e.handleForecastString()

	case "CLRLOG", "NEWSETUP":
		return e.write([]byte{vantage.ACK}) == nil

	default:
		e.logger.Debugf("unknown command: %q", cmd)
		return true
	}
}

// parseCount extracts the packet count from a LOOP/LPS command: the
// first numeric field, defaulting to one.
func parseCount(fields []string) int {
	for _, f := range fields[1:] {
		if n, err := strconv.Atoi(f); err == nil {
			if n <= 0 {
				return 1
			}
			return n
		}
	}
	return 1
}

func (e *Engine) handleGetTime() bool {
	payload := vantage.ConsoleTime(time.Now())
	crc := crc16.Crc16(payload[:])

	resp := make([]byte, 0, 9)
	resp = append(resp, vantage.ACK)
	resp = append(resp, payload[:]...)
	resp = append(resp, byte(crc>>8), byte(crc))
	return e.write(resp) == nil
}

// handleSetTime accepts the six-byte time payload plus CRC. The time is
// verified and acknowledged but not applied: the host clock is not ours
// to set.
func (e *Engine) handleSetTime() bool {
	if e.write([]byte{vantage.ACK}) != nil {
		return false
	}

	e.phase = PhaseAwaitingTimeSet
	defer func() { e.phase = PhaseIdle }()

	data, err := e.readExact(8)
	if err != nil {
		e.logger.Debugf("SETTIME: short payload: %v", err)
		return false
	}

	calc := crc16.Crc16(data[0:6])
	recv := uint16(data[6])<<8 | uint16(data[7])
	if calc != recv {
		e.logger.Debugf("SETTIME: CRC mismatch (calc %04X, recv %04X)", calc, recv)
		return e.write([]byte{vantage.CANCEL}) == nil
	}

	var payload [6]byte
	copy(payload[:], data[0:6])
	e.logger.Debugf("SETTIME: client set clock to %v", vantage.DecodeConsoleTime(payload))
	return e.write([]byte{vantage.ACK}) == nil
}

// parseHexArgs parses the address and length/value arguments shared by
// the EEPROM commands; they are hex, per the Davis protocol.
func parseHexArgs(fields []string) (addr, val int, err error) {
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("need address and length")
	}
	a, err := strconv.ParseUint(fields[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad address %q", fields[1])
	}
	v, err := strconv.ParseUint(fields[2], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad argument %q", fields[2])
	}
	return int(a), int(v), nil
}

func (e *Engine) handleEEBRD(fields []string) bool {
	addr, length, err := parseHexArgs(fields)
	if err != nil {
		e.logger.Debugf("EEBRD: %v", err)
		return e.write([]byte{vantage.NAK}) == nil
	}

	data := e.eeprom.Read(addr, length)
	crc := crc16.Crc16(data)

	resp := make([]byte, 0, len(data)+3)
	resp = append(resp, vantage.ACK)
	resp = append(resp, data...)
	resp = append(resp, byte(crc>>8), byte(crc))
	return e.write(resp) == nil
}

func (e *Engine) handleEERD(fields []string) bool {
	addr, length, err := parseHexArgs(fields)
	if err != nil {
		e.logger.Debugf("EERD: %v", err)
		return e.write([]byte{vantage.NAK}) == nil
	}

	var sb strings.Builder
	sb.WriteString("\n\rOK\n\r")
	for _, b := range e.eeprom.Read(addr, length) {
		fmt.Fprintf(&sb, "%02X\n\r", b)
	}
	return e.write([]byte(sb.String())) == nil
}

func (e *Engine) handleEEWR(fields []string) bool {
	addr, val, err := parseHexArgs(fields)
	if err != nil || val > 0xFF {
		e.logger.Debugf("EEWR: bad arguments %v", fields)
		return e.write([]byte{vantage.NAK}) == nil
	}

	if err := e.eeprom.Write(addr, byte(val)); err != nil {
		e.logger.Debugf("EEWR: %v", err)
		return e.write([]byte{vantage.NAK}) == nil
	}
	if e.station.DebugDetail >= 1 {
		e.logger.Debugf("EEWR: set addr 0x%02X = 0x%02X", addr, val)
	}
	return e.write([]byte("\n\rOK\n\r")) == nil
}

func (e *Engine) handleHiLows() bool {
	payload := make([]byte, 436)
	crc := crc16.Crc16(payload)

	resp := make([]byte, 0, 439)
	resp = append(resp, vantage.ACK)
	resp = append(resp, payload...)
	resp = append(resp, byte(crc>>8), byte(crc))
	return e.write(resp) == nil
}

func (e *Engine) handleBarData() bool {
	baro := 29920
	if obs, _ := e.cache.Snapshot(); obs != nil && obs.Barometer != nil && *obs.Barometer != 0 {
		baro = int(*obs.Barometer * 1000)
	}

	var sb strings.Builder
	sb.WriteString("\n\rOK\n\r")
	fmt.Fprintf(&sb, "BAR %d\n\r", baro)
	sb.WriteString("ELEVATION 0\n\r")
	sb.WriteString("DEW POINT 50\n\r")
	sb.WriteString("VIRTUAL TEMP 60\n\r")
	sb.WriteString("C 12\n\r")
	sb.WriteString("R 1000\n\r")
	sb.WriteString("BARCAL 0\n\r")
	sb.WriteString("GAIN 0\n\r")
	sb.WriteString("OFFSET 0\n\r")
	return e.write([]byte(sb.String())) == nil
}

func (e *Engine) handleForecastString() bool {
	text := "Forecast not available"
	if obs, _ := e.cache.Snapshot(); obs != nil && obs.ForecastRule != nil {
		text = vantage.ForecastString(*obs.ForecastRule)
	}
	return e.write([]byte(text+"\n\r")) == nil
}
