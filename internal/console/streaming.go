package console

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/wlipd/pkg/vantage"
)

// loopInterval is the pace of a multi-packet live stream. Real
// consoles emit LOOP packets roughly every two seconds and clients
// time their reads around it.
const loopInterval = 2 * time.Second

// Watchdog actions for stale live data.
const (
	LagActionLogOnly = iota
	LagActionDisconnect
	LagActionKillProcess
)

// handleLoop streams count live packets. loop2 selects the LOOP2
// encoder (LPS with the station configured for it).
func (e *Engine) handleLoop(ctx context.Context, count int, loop2 bool) bool {
	if !e.checkWatchdog() {
		return false
	}

	if e.write([]byte{vantage.ACK}) != nil {
		return false
	}

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			return false
		}

		// Anything the client sends ends the stream; the bytes stay
		// buffered and are handled as the next command.
		if e.peekInterrupt() {
			if e.station.DebugDetail >= 1 {
				e.logger.Debugf("loop interrupted by client after %d packets", i)
			}
			return true
		}

		obs, _ := e.cache.Snapshot()
		var packet []byte
		if loop2 {
			packet = vantage.EncodeLoop2(obs)
		} else {
			packet = vantage.EncodeLoop(obs)
		}

		if e.write(packet) != nil {
			return false
		}

		if count > 1 {
			e.sleep(loopInterval)
		}
	}
	return true
}

// checkWatchdog measures the age of the live-packet cache against the
// configured threshold and applies the configured action. It returns
// false when the connection must close without streaming.
func (e *Engine) checkWatchdog() bool {
	age := e.cache.Age()

	if e.station.DebugDetail >= 1 {
		e.logLagStats(age)
	}

	if e.station.MaxLagThreshold <= 0 || age < 0 {
		return true
	}
	lag := int(age / time.Second)
	if lag <= e.station.MaxLagThreshold {
		return true
	}

	switch e.station.MaxLagAction {
	case LagActionKillProcess:
		e.logger.Errorf("WATCHDOG: data lag %ds > %ds threshold - killing process", lag, e.station.MaxLagThreshold)
		e.conn.Close()
		e.exit(1)
		return false

	case LagActionDisconnect:
		e.logger.Errorf("WATCHDOG: data lag %ds > %ds threshold - disconnecting client", lag, e.station.MaxLagThreshold)
		return false

	default:
		e.logger.Warnf("WATCHDOG: data lag %ds > %ds threshold - streaming stale data", lag, e.station.MaxLagThreshold)
		return true
	}
}

func (e *Engine) logLagStats(age time.Duration) {
	obs, _ := e.cache.Snapshot()
	if obs == nil {
		e.logger.Debug("sending LOOP packets... [no data]")
		return
	}

	temp, wind := "none", "none"
	if obs.OutTemp != nil {
		temp = fmt.Sprintf("%.1f", *obs.OutTemp)
	}
	if obs.WindSpeed != nil {
		wind = fmt.Sprintf("%.1f", *obs.WindSpeed)
	}
	e.logger.Debugf("sending LOOP packets... [lag: %ds | temp: %s | wind: %s]",
		int(age/time.Second), temp, wind)
}
