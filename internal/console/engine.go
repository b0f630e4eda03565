// Package console implements the Vantage console command engine: the
// per-connection framer and state machine that answers the Davis
// serial-over-TCP command set.
package console

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/wlipd/internal/eeprom"
	"github.com/chrissnell/wlipd/internal/live"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/internal/storage"
	"github.com/chrissnell/wlipd/pkg/config"
)

// Phase tracks where a connection is inside a multi-turn exchange.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingTimestamp
	PhaseDownloading
	PhaseAwaitingTimeSet
)

// Engine drives one accepted connection. It is single-threaded: every
// response is strictly ordered after its command, and a download can
// never interleave with a live stream.
type Engine struct {
	conn    net.Conn
	station *config.StationData
	eeprom  *eeprom.EEPROM
	cache   *live.Cache
	store   storage.ArchiveStore
	logger  *zap.SugaredLogger

	id        string
	localPort int
	buf       []byte
	phase     Phase

	// exit is called for watchdog action 2; tests replace it.
	exit func(code int)
	// sleep paces multi-packet streams; tests replace it.
	sleep func(d time.Duration)
}

// NewEngine builds an engine for one accepted connection.
func NewEngine(conn net.Conn, station *config.StationData, ee *eeprom.EEPROM,
	cache *live.Cache, store storage.ArchiveStore) *Engine {

	id := uuid.New().String()[:8]
	localPort := 0
	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		localPort = addr.Port
	}

	return &Engine{
		conn:      conn,
		station:   station,
		eeprom:    ee,
		cache:     cache,
		store:     store,
		logger:    log.GetSugaredLogger().With("conn", id, "peer", conn.RemoteAddr().String(), "port", localPort),
		id:        id,
		localPort: localPort,
		exit:      os.Exit,
		sleep:     time.Sleep,
	}
}

// Run consumes the connection until the peer disconnects or the
// context is cancelled. The caller closes the connection.
func (e *Engine) Run(ctx context.Context) {
	chunk := make([]byte, 1024)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := e.conn.Read(chunk)
		if n > 0 {
			if e.station.DebugDetail >= 2 {
				e.logRawRX(chunk[:n])
			}
			e.buf = append(e.buf, chunk[:n]...)
			if !e.drain(ctx) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				e.logger.Debugf("client disconnected: %v", err)
			}
			return
		}
	}
}

// drain processes every complete command in the input buffer. It
// returns false when the connection must close.
func (e *Engine) drain(ctx context.Context) bool {
	for len(e.buf) > 0 {
		// A bare LF or CR at the head is a wake-up.
		if e.buf[0] == 0x0A || e.buf[0] == 0x0D {
			if err := e.write([]byte("\n\r")); err != nil {
				return false
			}
			e.buf = e.buf[1:]
			continue
		}

		// A complete line is an ASCII command.
		if idx := bytes.IndexByte(e.buf, 0x0A); idx >= 0 {
			raw := e.buf[:idx]
			e.buf = e.buf[idx+1:]
			cmd := strings.TrimSpace(string(raw))
			if len(cmd) > 0 {
				if !e.dispatch(ctx, cmd, raw) {
					return false
				}
			}
			continue
		}

		// The binary wake-up has no terminator.
		if bytes.Contains(e.buf, []byte("WRD")) {
			raw := e.buf
			e.buf = nil
			if !e.dispatch(ctx, "WRD", raw) {
				return false
			}
			continue
		}

		// Partial command; wait for more bytes.
		break
	}
	return true
}

func (e *Engine) logRawRX(data []byte) {
	dump := hex.EncodeToString(data)
	if len(dump) > 100 {
		dump = dump[:100] + "..."
	}
	e.logger.Debugf("RX: %s", dump)
}

// write sends bytes to the client, logging send failures at debug
// level only: a vanished peer is routine (spec: PeerClosed).
func (e *Engine) write(p []byte) error {
	if _, err := e.conn.Write(p); err != nil {
		e.logger.Debugf("write failed: %v", err)
		return err
	}
	return nil
}

// readExact reads exactly n bytes of a mid-command payload, consuming
// any bytes the client already pipelined into the input buffer.
func (e *Engine) readExact(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	if len(e.buf) > 0 {
		take := len(e.buf)
		if take > n {
			take = n
		}
		out = append(out, e.buf[:take]...)
		e.buf = e.buf[take:]
	}
	if len(out) < n {
		rest := make([]byte, n-len(out))
		if _, err := io.ReadFull(e.conn, rest); err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}
	return out, nil
}

// readByte reads one control byte (an ACK slot in a handshake).
func (e *Engine) readByte() (byte, error) {
	b, err := e.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// peekInterrupt checks, without blocking, whether the client has sent
// anything since the last command; live streams end when it has. A
// byte read off the socket is pushed back into the input buffer so the
// interrupting command is not lost.
func (e *Engine) peekInterrupt() bool {
	if len(e.buf) > 0 {
		return true
	}

	// A deadline in the past would fail without attempting the read at
	// all; a few hundred microseconds still reads data the kernel has
	// already buffered and expires otherwise.
	if err := e.conn.SetReadDeadline(time.Now().Add(200 * time.Microsecond)); err != nil {
		return true
	}
	defer e.conn.SetReadDeadline(time.Time{})

	one := make([]byte, 1)
	n, err := e.conn.Read(one)
	if n > 0 {
		e.buf = append(e.buf, one[0])
		return true
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false
		}
		// Real error: treat as interrupted so the stream unwinds.
		return true
	}
	return false
}
