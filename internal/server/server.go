// Package server binds the configured console ports and hands accepted
// connections to the command engine. The default port accepts any
// peer; each VIP port is pinned to one configured IP address.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/chrissnell/wlipd/internal/console"
	"github.com/chrissnell/wlipd/internal/eeprom"
	"github.com/chrissnell/wlipd/internal/live"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/internal/storage"
	"github.com/chrissnell/wlipd/pkg/config"
)

// Server owns every console listener for the process lifetime.
type Server struct {
	station *config.StationData
	eeprom  *eeprom.EEPROM
	cache   *live.Cache
	store   storage.ArchiveStore

	mu        sync.Mutex
	listeners []net.Listener
	conns     map[net.Conn]struct{}
	active    int
}

// New builds a server around the shared console state.
func New(station *config.StationData, ee *eeprom.EEPROM, cache *live.Cache, store storage.ArchiveStore) *Server {
	return &Server{
		station: station,
		eeprom:  ee,
		cache:   cache,
		store:   store,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ActiveConnections reports how many client connections are open.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start waits out the startup delay, binds every configured port and
// launches one acceptor per listener. A port that fails to bind is
// logged and skipped; the others still come up.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if s.station.StartupDelay > 0 {
		log.Infof("startup delay: waiting %d seconds before binding ports", s.station.StartupDelay)
		select {
		case <-time.After(time.Duration(s.station.StartupDelay) * time.Second):
			log.Info("startup delay complete, opening ports")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	mapping, errs := config.ParseClientMapping(s.station.ClientMapping)
	for _, err := range errs {
		log.Errorf("ignoring VIP mapping: %v", err)
	}
	for port, ip := range mapping {
		log.Infof("configured VIP mapping: IP %s -> port %d", ip, port)
	}
	if _, taken := mapping[s.station.Port]; !taken {
		mapping[s.station.Port] = ""
		log.Infof("default port %d is open to all connections", s.station.Port)
	}

	bound := 0
	for port, allowedIP := range mapping {
		ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err != nil {
			log.Errorf("could not bind port %d: %v", port, err)
			continue
		}
		bound++

		s.mu.Lock()
		s.listeners = append(s.listeners, ln)
		s.mu.Unlock()

		access := "ALL"
		if allowedIP != "" {
			access = allowedIP
		}
		log.Infof("listening on port %d [allowed: %s]", port, access)

		wg.Add(1)
		go s.acceptLoop(ctx, wg, ln, port, allowedIP)
	}
	if bound == 0 {
		return fmt.Errorf("no console ports could be bound")
	}

	// Closing the listeners unblocks every acceptor on shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.closeListeners()
	}()

	return nil
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil

	// In-flight handlers unwind on their next read.
	for conn := range s.conns {
		conn.Close()
	}
}

// acceptLoop accepts connections on one port until the listener is
// closed. VIP ports silently drop peers that do not match the pinned
// address, before any byte is written.
func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener, port int, allowedIP string) {
	defer wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("accept error on port %d: %v", port, err)
			return
		}

		peerIP := ""
		if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			peerIP = addr.IP.String()
		}

		if allowedIP != "" && peerIP != allowedIP {
			log.Debugf("rejected connection from %s on port %d (not %s)", peerIP, port, allowedIP)
			conn.Close()
			continue
		}

		s.mu.Lock()
		if s.active >= s.station.MaxClients {
			s.mu.Unlock()
			log.Warnf("rejecting connection from %s: client limit %d reached", peerIP, s.station.MaxClients)
			conn.Close()
			continue
		}
		s.active++
		s.conns[conn] = struct{}{}
		count := s.active
		s.mu.Unlock()

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		log.Infof("connection from %s -> port %d, active: %d", conn.RemoteAddr(), port, count)

		wg.Add(1)
		go s.handle(ctx, wg, conn)
	}
}

// handle runs one command engine and releases the connection on every
// exit path.
func (s *Server) handle(ctx context.Context, wg *sync.WaitGroup, conn net.Conn) {
	defer wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.active--
		delete(s.conns, conn)
		count := s.active
		s.mu.Unlock()
		log.Infof("disconnected %s, active: %d", conn.RemoteAddr(), count)
	}()

	engine := console.NewEngine(conn, s.station, s.eeprom, s.cache, s.store)
	engine.Run(ctx)
}
