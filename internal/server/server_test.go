package server

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/wlipd/internal/eeprom"
	"github.com/chrissnell/wlipd/internal/live"
	"github.com/chrissnell/wlipd/internal/storage"
	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/config"
)

type nilStore struct{}

func (nilStore) Iterate(context.Context, int64, int) ([]*types.Observation, error) {
	return nil, nil
}
func (nilStore) Close() error { return nil }

var _ storage.ArchiveStore = nilStore{}

// freePort grabs an ephemeral port the test can hand to the server.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func startServer(t *testing.T, station *config.StationData) (*Server, context.CancelFunc) {
	t.Helper()
	station.ApplyDefaults()

	ee := eeprom.New(eeprom.Seed{ArchiveInterval: 5})
	srv := New(station, ee, live.NewCache(), nilStore{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if err := srv.Start(ctx, &wg); err != nil {
		cancel()
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return srv, cancel
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, err = net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), time.Second)
		if err == nil {
			return conn
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("could not connect to port %d: %v", port, err)
	return nil
}

func TestDefaultPortServesProtocol(t *testing.T) {
	port := freePort(t)
	startServer(t, &config.StationData{Port: port})

	conn := dial(t, port)
	defer conn.Close()

	if _, err := conn.Write([]byte("TEST\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "\n\rTEST\n\r" {
		t.Fatalf("TEST response = %q", buf)
	}
}

// A VIP port closes mismatched peers without writing a
// byte.
func TestVIPRejection(t *testing.T) {
	vipPort := freePort(t)
	defaultPort := freePort(t)
	startServer(t, &config.StationData{
		Port:          defaultPort,
		ClientMapping: []string{"192.168.1.50:" + strconv.Itoa(vipPort)},
	})

	conn := dial(t, vipPort)
	defer conn.Close()

	// The peer is 127.0.0.1, not the pinned address: the connection is
	// closed with zero bytes written.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	if n != 0 {
		t.Fatalf("VIP port wrote %d bytes before closing", n)
	}
	if err != io.EOF {
		t.Fatalf("expected EOF from rejected VIP connection, got %v", err)
	}
}

func TestVIPAllowsPinnedPeer(t *testing.T) {
	vipPort := freePort(t)
	defaultPort := freePort(t)
	startServer(t, &config.StationData{
		Port:          defaultPort,
		ClientMapping: []string{"127.0.0.1:" + strconv.Itoa(vipPort)},
	})

	conn := dial(t, vipPort)
	defer conn.Close()

	if _, err := conn.Write([]byte("TEST\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("pinned peer read: %v", err)
	}
}

func TestActiveConnectionCount(t *testing.T) {
	port := freePort(t)
	srv, _ := startServer(t, &config.StationData{Port: port})

	conn1 := dial(t, port)
	conn2 := dial(t, port)
	defer conn1.Close()
	defer conn2.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ActiveConnections() != 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := srv.ActiveConnections(); got != 2 {
		t.Fatalf("active connections = %d, want 2", got)
	}

	conn1.Close()
	for srv.ActiveConnections() != 1 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := srv.ActiveConnections(); got != 1 {
		t.Fatalf("active connections after close = %d, want 1", got)
	}
}

func TestGracefulShutdownClosesClients(t *testing.T) {
	port := freePort(t)
	_, cancel := startServer(t, &config.StationData{Port: port})

	conn := dial(t, port)
	defer conn.Close()

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection to close on shutdown")
	}
}
