package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an RFC 7807 problem detail response.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://plcfleet.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// timeRange parses ?from and ?to query params (RFC 3339). Defaults to
// the last hour when absent.
func timeRange(r *http.Request) (from, to time.Time, err error) {
	now := time.Now().UTC()
	from, to = now.Add(-time.Hour), now

	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = time.Parse(time.RFC3339, s); err != nil {
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = time.Parse(time.RFC3339, s); err != nil {
			return
		}
	}
	return
}

// handleLatest returns the most recent reading for a register.
func (m *Module) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid register id")
		return
	}

	reading, err := m.store.Latest(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to load latest reading", zap.Int64("register_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest reading")
		return
	}
	if reading == nil {
		writeError(w, http.StatusNotFound, "no readings for register")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// handleDeviceLatest returns the newest reading of every register
// belonging to a device.
func (m *Module) handleDeviceLatest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	readings, err := m.store.LatestPerRegister(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to load device readings", zap.Int64("device_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load device readings")
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleRange returns raw readings for a register within a time range.
func (m *Module) handleRange(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid register id")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time range: "+err.Error())
		return
	}

	limit := 1000
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 10000 {
			limit = v
		}
	}

	readings, err := m.store.Range(r.Context(), id, from, to, limit)
	if err != nil {
		m.logger.Error("failed to load readings", zap.Int64("register_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleAggregate returns min/max/avg buckets for a register.
func (m *Module) handleAggregate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid register id")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time range: "+err.Error())
		return
	}

	bucket := time.Minute
	if s := r.URL.Query().Get("bucket"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < time.Second {
			writeError(w, http.StatusBadRequest, "invalid bucket duration")
			return
		}
		bucket = d
	}

	points, err := m.store.Aggregate(r.Context(), id, from, to, bucket)
	if err != nil {
		m.logger.Error("failed to aggregate readings", zap.Int64("register_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to aggregate readings")
		return
	}
	if points == nil {
		points = []AggregatePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}
