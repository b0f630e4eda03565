package management

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/wlipd/internal/constants"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/solar"
)

// handlePublishObservation is the LiveSource inbound adapter: the
// collector POSTs an observation (JSON, or MessagePack with the
// matching content type) and it atomically replaces the live cache.
func (c *Controller) handlePublishObservation(w http.ResponseWriter, r *http.Request) {
	var obs types.Observation

	var err error
	if r.Header.Get("Content-Type") == "application/x-msgpack" {
		dec := msgpack.NewDecoder(r.Body)
		dec.SetCustomStructTag("json")
		err = dec.Decode(&obs)
	} else {
		err = json.NewDecoder(r.Body).Decode(&obs)
	}
	if err != nil {
		http.Error(w, "could not decode observation: "+err.Error(), http.StatusBadRequest)
		return
	}

	if obs.Units != 0 && obs.Units != types.UnitsUS {
		http.Error(w, "observations must use US units", http.StatusBadRequest)
		return
	}
	obs.Units = types.UnitsUS
	if obs.DateTime == 0 {
		obs.DateTime = time.Now().Unix()
	}

	// Fill sunrise/sunset from the station location when the collector
	// does not supply them, so LOOP packets carry real values.
	if obs.Sunrise == nil && c.station.Latitude != 0 {
		if sunrise, sunset, ok := solar.SunTimes(time.Now(), c.station.Latitude, c.station.Longitude); ok {
			obs.Sunrise = types.Epoch(sunrise)
			obs.Sunset = types.Epoch(sunset)
		}
	}

	c.cache.Publish(&obs)

	if c.station.DebugDetail >= 1 {
		log.Debugf("published observation: ts=%d", obs.DateTime)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetObservation returns the latest cached observation.
func (c *Controller) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	obs, updatedAt := c.cache.Snapshot()
	if obs == nil {
		http.Error(w, "no observation published yet", http.StatusNotFound)
		return
	}

	c.formatter.WriteResponse(w, r, map[string]any{
		"lastUpdated": updatedAt.Format(time.RFC3339),
		"observation": obs,
	})
}

// handleStatus reports emulator health: connection counts, cache age,
// and version.
func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	age := c.cache.Age()
	ageSeconds := -1
	if age >= 0 {
		ageSeconds = int(age / time.Second)
	}

	c.formatter.WriteResponse(w, r, map[string]any{
		"version":           constants.Version,
		"activeConnections": c.console.ActiveConnections(),
		"observationAge":    ageSeconds,
		"stationType":       c.station.StationType,
		"port":              c.station.Port,
	})
}

// handleLogs serves the in-memory log tail.
func (c *Controller) handleLogs(w http.ResponseWriter, r *http.Request) {
	buffer := log.GetBuffer()
	if buffer == nil {
		http.Error(w, "log buffer not initialized", http.StatusServiceUnavailable)
		return
	}
	c.formatter.WriteResponse(w, r, buffer.Entries())
}
