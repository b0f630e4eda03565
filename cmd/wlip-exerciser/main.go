// wlip-exerciser drives a running wlipd instance through the Davis
// protocol the way a desktop client would: wake, TEST, the console
// clock, a short LOOP stream and a DMPAFT download, verifying CRCs along the
// way. Useful for smoke-testing a deployment from the command line.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/chrissnell/wlipd/pkg/crc16"
	"github.com/chrissnell/wlipd/pkg/vantage"
)

const readTimeout = 10 * time.Second

// consoleClient handles the gnet-based network connection to the
// emulated console.
type consoleClient struct {
	*gnet.BuiltinEventEngine

	addr          string
	readChan      chan []byte
	connectedChan chan bool

	mu   sync.Mutex
	conn gnet.Conn
	buf  []byte
}

func (c *consoleClient) OnBoot(eng gnet.Engine) gnet.Action {
	return gnet.None
}

func (c *consoleClient) OnOpen(conn gnet.Conn) ([]byte, gnet.Action) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connectedChan <- true
	return nil, gnet.None
}

func (c *consoleClient) OnClose(conn gnet.Conn, err error) gnet.Action {
	if err != nil {
		log.Printf("connection closed: %v", err)
	}
	return gnet.None
}

func (c *consoleClient) OnTraffic(conn gnet.Conn) gnet.Action {
	data, err := conn.Next(-1)
	if err != nil {
		return gnet.Close
	}
	if len(data) > 0 {
		chunk := make([]byte, len(data))
		copy(chunk, data)
		c.readChan <- chunk
	}
	return gnet.None
}

func (c *consoleClient) send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.AsyncWrite(data, nil)
}

// read returns exactly n bytes, accumulating traffic as it arrives.
func (c *consoleClient) read(n int) ([]byte, error) {
	deadline := time.After(readTimeout)
	for len(c.buf) < n {
		select {
		case chunk := <-c.readChan:
			c.buf = append(c.buf, chunk...)
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for %d bytes (have %d)", n, len(c.buf))
		}
	}
	out := c.buf[:n]
	c.buf = c.buf[n:]
	return out, nil
}

// drain discards anything already received.
func (c *consoleClient) drain() {
	for {
		select {
		case <-c.readChan:
		case <-time.After(100 * time.Millisecond):
			c.buf = nil
			return
		}
	}
}

func (c *consoleClient) expectACK(phase string) error {
	b, err := c.read(1)
	if err != nil {
		return fmt.Errorf("%s: %w", phase, err)
	}
	if b[0] != vantage.ACK {
		return fmt.Errorf("%s: expected ACK, got 0x%02X", phase, b[0])
	}
	return nil
}

func main() {
	var (
		addr      = flag.String("addr", "localhost:22222", "Console address")
		loopCount = flag.Int("loops", 2, "Number of LOOP packets to request")
	)
	flag.Parse()

	client := &consoleClient{
		addr:          *addr,
		readChan:      make(chan []byte, 64),
		connectedChan: make(chan bool, 1),
	}

	cli, err := gnet.NewClient(client)
	if err != nil {
		log.Fatalf("could not create client: %v", err)
	}
	if err := cli.Start(); err != nil {
		log.Fatalf("could not start client: %v", err)
	}
	defer cli.Stop()

	if _, err := cli.Dial("tcp", *addr); err != nil {
		log.Fatalf("could not connect to %s: %v", *addr, err)
	}
	select {
	case <-client.connectedChan:
	case <-time.After(readTimeout):
		log.Fatal("timed out connecting")
	}
	log.Printf("connected to %s", *addr)

	if err := run(client, *loopCount); err != nil {
		log.Fatalf("FAIL: %v", err)
	}
	log.Print("PASS: console answered every exchange with valid CRCs")
	os.Exit(0)
}

func run(c *consoleClient, loopCount int) error {
	// Wake the console.
	if err := c.send([]byte("\n")); err != nil {
		return err
	}
	wake, err := c.read(2)
	if err != nil {
		return fmt.Errorf("wake: %w", err)
	}
	if string(wake) != "\n\r" {
		return fmt.Errorf("wake: unexpected response % X", wake)
	}
	log.Print("console is awake")

	// Liveness probe.
	if err := c.send([]byte("TEST\n")); err != nil {
		return err
	}
	test, err := c.read(8)
	if err != nil {
		return fmt.Errorf("TEST: %w", err)
	}
	if string(test) != "\n\rTEST\n\r" {
		return fmt.Errorf("TEST: unexpected response %q", test)
	}
	log.Print("TEST ok")

	// Console clock, CRC-checked.
	if err := c.send([]byte("GETTIME\n")); err != nil {
		return err
	}
	if err := c.expectACK("GETTIME"); err != nil {
		return err
	}
	clock, err := c.read(8)
	if err != nil {
		return fmt.Errorf("GETTIME: %w", err)
	}
	if crc16.Crc16(clock) != 0 {
		return fmt.Errorf("GETTIME: CRC mismatch")
	}
	log.Printf("GETTIME ok: %02d:%02d:%02d", clock[2], clock[1], clock[0])

	// A short LOOP stream.
	if err := c.send([]byte(fmt.Sprintf("LOOP %d\n", loopCount))); err != nil {
		return err
	}
	if err := c.expectACK("LOOP"); err != nil {
		return err
	}
	for i := 0; i < loopCount; i++ {
		packet, err := c.read(vantage.LoopPacketLength)
		if err != nil {
			return fmt.Errorf("LOOP %d: %w", i+1, err)
		}
		if string(packet[0:3]) != "LOO" {
			return fmt.Errorf("LOOP %d: bad header % X", i+1, packet[0:3])
		}
		if crc16.Crc16(packet) != 0 {
			return fmt.Errorf("LOOP %d: CRC mismatch", i+1)
		}
		log.Printf("LOOP %d/%d ok", i+1, loopCount)
	}

	// Incremental download from the epoch: the console bounds it to
	// its hardware limit.
	c.drain()
	if err := c.send([]byte("DMPAFT\n")); err != nil {
		return err
	}
	if err := c.expectACK("DMPAFT"); err != nil {
		return err
	}

	ts := make([]byte, 6)
	binary.BigEndian.PutUint16(ts[4:6], crc16.Crc16(ts[:4]))
	if err := c.send(ts); err != nil {
		return err
	}
	if err := c.expectACK("DMPAFT timestamp"); err != nil {
		return err
	}

	header, err := c.read(6)
	if err != nil {
		return fmt.Errorf("DMPAFT header: %w", err)
	}
	if crc16.Crc16(header) != 0 {
		return fmt.Errorf("DMPAFT header: CRC mismatch")
	}
	pages := binary.LittleEndian.Uint16(header[0:2])
	log.Printf("DMPAFT: %d pages available", pages)

	if err := c.send([]byte{vantage.ACK}); err != nil {
		return err
	}
	for i := 0; i < int(pages); i++ {
		page, err := c.read(vantage.PageLength)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		if crc16.Crc16(page) != 0 {
			return fmt.Errorf("page %d: CRC mismatch", i)
		}
		if page[0] != byte(i%256) {
			return fmt.Errorf("page %d: bad sequence byte %d", i, page[0])
		}
		if err := c.send([]byte{vantage.ACK}); err != nil {
			return err
		}
	}
	log.Printf("DMPAFT ok: downloaded %d pages", pages)

	return nil
}
