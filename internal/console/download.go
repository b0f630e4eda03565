package console

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/chrissnell/wlipd/internal/storage"
	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/vantage"
)

// HardwareRecordLimit is the ring-buffer depth of a real Davis logger.
// A download that asks for "everything" (zero or undecodable timestamp)
// is bounded to the span those records would cover at the configured
// archive interval, so clients cannot pull years of history.
const HardwareRecordLimit = 2560

// hardwareLimitTimestamp is the effective lower bound for a download in
// hardware-limit mode.
func (e *Engine) hardwareLimitTimestamp(now time.Time) int64 {
	interval := e.eeprom.ArchiveInterval()
	return now.Add(-time.Duration(HardwareRecordLimit*interval) * time.Minute).Unix()
}

// handleDmpAft runs the DMPAFT exchange: ACK, read the six-byte
// timestamp block, ACK, header, then pages with per-page ACK/CANCEL.
func (e *Engine) handleDmpAft(ctx context.Context) bool {
	if e.write([]byte{vantage.ACK}) != nil {
		return false
	}

	e.phase = PhaseAwaitingTimestamp
	defer func() { e.phase = PhaseIdle }()

	// date LE16 | time LE16 | crc BE16. Real consoles never verify the
	// CRC here and neither do we.
	tsData, err := e.readExact(6)
	if err != nil {
		e.logger.Debugf("DMPAFT: short timestamp read: %v", err)
		return false
	}

	davisDate := binary.LittleEndian.Uint16(tsData[0:2])
	davisTime := binary.LittleEndian.Uint16(tsData[2:4])

	now := time.Now()
	var requestedTS int64
	if davisDate == 0 && davisTime == 0 {
		requestedTS = e.hardwareLimitTimestamp(now)
		e.logger.Debugf("DMPAFT: full download requested (hardware limit)")
	} else if t, ok := vantage.DecodeStamp(davisDate, davisTime); ok {
		requestedTS = t.Unix()
		e.logger.Debugf("DMPAFT: requesting records after %v", t)
	} else {
		requestedTS = e.hardwareLimitTimestamp(now)
		e.logger.Debugf("DMPAFT: undecodable timestamp, using hardware limit")
	}

	if e.write([]byte{vantage.ACK}) != nil {
		return false
	}
	return e.downloadArchive(ctx, requestedTS)
}

// handleDmp is a full download: DMPAFT with an implied hardware-limit
// timestamp and no six-byte exchange.
func (e *Engine) handleDmp(ctx context.Context) bool {
	if e.write([]byte{vantage.ACK}) != nil {
		return false
	}
	return e.downloadArchive(ctx, e.hardwareLimitTimestamp(time.Now()))
}

// downloadArchive sends the page-count header and then the pages, each
// gated on a one-byte reply from the client.
func (e *Engine) downloadArchive(ctx context.Context, requestedTS int64) bool {
	records, err := e.store.Iterate(ctx, requestedTS, storage.MaxDownloadRecords)
	if err != nil {
		// A store failure is served as an empty download; the client
		// sees a clean zero-page exchange and retries on its own
		// schedule.
		e.logger.Errorf("archive query error: %v", err)
		records = nil
	}

	if e.station.DebugDetail >= 1 {
		if len(records) > 0 {
			e.logger.Debugf("archive query: %d records [%d to %d]",
				len(records), records[0].DateTime, records[len(records)-1].DateTime)
		} else {
			e.logger.Debugf("archive query: 0 records found")
		}
	}

	numPages := (len(records) + vantage.RecordsPerPage - 1) / vantage.RecordsPerPage
	if e.write(vantage.EncodeDownloadHeader(uint16(numPages))) != nil {
		return false
	}

	ack, err := e.readByte()
	if err != nil || ack != vantage.ACK {
		return err == nil
	}

	e.phase = PhaseDownloading
	for pageIdx := 0; pageIdx < numPages; pageIdx++ {
		lo := pageIdx * vantage.RecordsPerPage
		hi := lo + vantage.RecordsPerPage
		if hi > len(records) {
			hi = len(records)
		}

		page := vantage.EncodePage(byte(pageIdx%256), encodeRecords(records[lo:hi]))
		if e.write(page) != nil {
			return false
		}

		reply, err := e.readByte()
		if err != nil {
			return false
		}
		if reply == vantage.ESC {
			e.logger.Debugf("download cancelled by client at page %d/%d", pageIdx+1, numPages)
			break
		}
	}
	return true
}

func encodeRecords(obs []*types.Observation) [][]byte {
	out := make([][]byte, 0, len(obs))
	for _, o := range obs {
		out = append(out, vantage.EncodeArchiveRecord(o))
	}
	return out
}
