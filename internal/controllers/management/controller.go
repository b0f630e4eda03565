// Package management provides the HTTP API through which the upstream
// collector publishes observations (the live source) and operators
// inspect the emulator.
package management

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chrissnell/wlipd/internal/live"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/internal/server"
	"github.com/chrissnell/wlipd/pkg/config"
	"github.com/chrissnell/wlipd/pkg/responseformat"
)

// Controller is the management API server.
type Controller struct {
	config    *config.ManagementAPIData
	station   *config.StationData
	cache     *live.Cache
	console   *server.Server
	formatter *responseformat.Formatter

	httpServer *http.Server
}

// New builds the management API controller.
func New(cfg *config.ManagementAPIData, station *config.StationData, cache *live.Cache, console *server.Server) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("management API configuration not found")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = uuid.New().String()
		log.Infof("management API access token (save this): %s", cfg.AuthToken)
	}
	if cfg.Port == 0 {
		cfg.Port = 8081
	}

	return &Controller{
		config:    cfg,
		station:   station,
		cache:     cache,
		console:   console,
		formatter: responseformat.NewFormatter(),
	}, nil
}

// Start launches the HTTP server and arranges shutdown with the
// context.
func (c *Controller) Start(ctx context.Context, wg *sync.WaitGroup) error {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.authMiddleware)
	api.HandleFunc("/observation", c.handlePublishObservation).Methods(http.MethodPost)
	api.HandleFunc("/observation", c.handleGetObservation).Methods(http.MethodGet)
	api.HandleFunc("/status", c.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/logs", c.handleLogs).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", c.config.ListenAddr, c.config.Port)
	c.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("management API listening on %s", addr)
		if err := c.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("management API server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.httpServer.Shutdown(shutdownCtx)
	}()

	return nil
}

// authMiddleware requires the configured bearer token on every API
// request.
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+c.config.AuthToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
