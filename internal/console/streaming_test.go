package console

import (
	"testing"
	"time"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/config"
	"github.com/chrissnell/wlipd/pkg/crc16"
	"github.com/chrissnell/wlipd/pkg/vantage"
)

func publishTestObservation(h *harness) {
	h.cache.Publish(&types.Observation{
		DateTime:  time.Now().Unix(),
		Units:     types.UnitsUS,
		OutTemp:   types.Float(72.5),
		Barometer: types.Float(29.92),
		WindSpeed: types.Float(5),
	})
}

func TestLoopSinglePacket(t *testing.T) {
	h := newHarness(t, nil, nil)
	publishTestObservation(h)

	h.send([]byte("LOOP 1\n"))
	if got := h.recv(1); got[0] != vantage.ACK {
		t.Fatalf("LOOP first byte = 0x%02X, want ACK", got[0])
	}

	packet := h.recv(vantage.LoopPacketLength)
	if string(packet[0:3]) != "LOO" {
		t.Fatalf("packet header = % X", packet[0:3])
	}
	if packet[4] != 0 {
		t.Errorf("packet type = %d, want 0 (LOOP)", packet[4])
	}
	if crc16.Crc16(packet) != 0 {
		t.Errorf("LOOP packet CRC mismatch")
	}
}

func TestLoopDefaultCount(t *testing.T) {
	h := newHarness(t, nil, nil)

	// Bare LOOP defaults to one packet, even with no data published:
	// everything dashes.
	h.send([]byte("LOOP\n"))
	h.recv(1)
	packet := h.recv(vantage.LoopPacketLength)
	if crc16.Crc16(packet) != 0 {
		t.Errorf("dashed LOOP packet CRC mismatch")
	}
	h.expectSilence(200 * time.Millisecond)
}

func TestLPSEmitsLoopByDefault(t *testing.T) {
	h := newHarness(t, nil, nil)
	publishTestObservation(h)

	h.send([]byte("LPS 1\n"))
	h.recv(1)
	packet := h.recv(vantage.LoopPacketLength)
	if packet[4] != 0 {
		t.Errorf("LPS packet type = %d, want 0 (LOOP)", packet[4])
	}
}

func TestLPSLoop2WhenConfigured(t *testing.T) {
	h := newHarness(t, &config.StationData{Loop2ForLPS: true}, nil)
	publishTestObservation(h)

	h.send([]byte("LPS 1\n"))
	h.recv(1)
	packet := h.recv(vantage.LoopPacketLength)
	if packet[4] != 1 {
		t.Errorf("LPS packet type = %d, want 1 (LOOP2)", packet[4])
	}
	if crc16.Crc16(packet) != 0 {
		t.Errorf("LOOP2 packet CRC mismatch")
	}
}

// Any byte from the client ends a multi-packet stream.
func TestLoopInterrupt(t *testing.T) {
	h := newHarness(t, nil, nil)
	publishTestObservation(h)

	// Gate the inter-packet sleep so the interrupt byte is in flight
	// before the engine peeks again.
	release := make(chan struct{})
	h.engine.sleep = func(time.Duration) { <-release }

	h.send([]byte("LOOP 5\n"))
	h.recv(1)
	h.recv(vantage.LoopPacketLength)

	// Queue the interrupt byte (the pipe write parks until the engine's
	// peek consumes it), then let the sleep return.
	written := make(chan struct{})
	go func() {
		h.client.Write([]byte{0x21})
		close(written)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-written:
	case <-time.After(2 * time.Second):
		t.Fatal("engine never consumed the interrupt byte")
	}

	// No second packet arrives; the interrupt byte was consumed into
	// the command buffer instead.
	h.expectSilence(300 * time.Millisecond)
}

// Watchdog action 1 disconnects before any LOOP bytes.
func TestWatchdogDisconnect(t *testing.T) {
	h := newHarness(t, &config.StationData{
		MaxLagThreshold: 60,
		MaxLagAction:    LagActionDisconnect,
	}, nil)

	h.cache.Publish(&types.Observation{DateTime: time.Now().Unix(), Units: types.UnitsUS})
	h.cache.SetClock(func() time.Time { return time.Now().Add(5 * time.Minute) })

	h.send([]byte("LOOP 1\n"))

	// Zero bytes, then EOF as the handler unwinds.
	h.expectSilence(500 * time.Millisecond)
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not close the connection")
	}
}

func TestWatchdogLogOnlyStreams(t *testing.T) {
	h := newHarness(t, &config.StationData{
		MaxLagThreshold: 60,
		MaxLagAction:    LagActionLogOnly,
	}, nil)

	h.cache.Publish(&types.Observation{DateTime: time.Now().Unix(), Units: types.UnitsUS})
	h.cache.SetClock(func() time.Time { return time.Now().Add(5 * time.Minute) })

	h.send([]byte("LOOP 1\n"))
	if got := h.recv(1); got[0] != vantage.ACK {
		t.Fatalf("LOOP under stale data = 0x%02X, want ACK", got[0])
	}
	h.recv(vantage.LoopPacketLength)
}

func TestWatchdogKillProcess(t *testing.T) {
	h := newHarness(t, &config.StationData{
		MaxLagThreshold: 60,
		MaxLagAction:    LagActionKillProcess,
	}, nil)

	h.cache.Publish(&types.Observation{DateTime: time.Now().Unix(), Units: types.UnitsUS})
	h.cache.SetClock(func() time.Time { return time.Now().Add(5 * time.Minute) })

	h.send([]byte("LOOP 1\n"))

	select {
	case code := <-h.exited:
		if code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not request process exit")
	}
}

func TestWatchdogDisabledWithNoData(t *testing.T) {
	// No data published yet: even with a threshold set, LOOP streams
	// dashed packets.
	h := newHarness(t, &config.StationData{
		MaxLagThreshold: 60,
		MaxLagAction:    LagActionDisconnect,
	}, nil)

	// Age is -1 before the first publish; the watchdog must not fire.
	h.send([]byte("LOOP 1\n"))
	if got := h.recv(1); got[0] != vantage.ACK {
		t.Fatalf("LOOP with no data = 0x%02X, want ACK", got[0])
	}
	h.recv(vantage.LoopPacketLength)
}
