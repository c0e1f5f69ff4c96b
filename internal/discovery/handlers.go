package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/markus8006/plcfleet/pkg/models"
	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/run", Handler: m.handleRun},
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "GET", Path: "/hosts", Handler: m.handleHosts},
		{Method: "GET", Path: "/candidates", Handler: m.handleCandidates},
		{Method: "GET", Path: "/devices", Handler: m.handleDevices},
		{Method: "GET", Path: "/interfaces", Handler: m.handleInterfaces},
		{Method: "GET", Path: "/logs", Handler: m.handleLogs},
	}
}

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

func newRunID() string {
	return uuid.New().String()
}

// parseRunOptions reads the optional request body. An empty body means
// run with the configured defaults.
func parseRunOptions(r *http.Request) (RunOptions, error) {
	var opts RunOptions
	err := json.NewDecoder(r.Body).Decode(&opts)
	if err != nil && !errors.Is(err, io.EOF) {
		return RunOptions{}, err
	}
	return opts, nil
}

// handleRun starts a discovery run. One run at a time; a second start
// while a run is active is a conflict.
func (m *Module) handleRun(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRunOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	runID := newRunID()
	if !m.startRun(runID, opts) {
		writeError(w, http.StatusConflict, "a discovery run is already active")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "running",
	})
}

// runStatus is the response for GET /status.
type runStatus struct {
	Running      bool        `json:"running"`
	RunID        string      `json:"run_id,omitempty"`
	Started      time.Time   `json:"started_at,omitempty"`
	LastFinished *time.Time  `json:"last_finished_at,omitempty"`
	ResultCount  int         `json:"result_count"`
	Import       ImportStats `json:"import"`
	Hosts        int         `json:"hosts"`
	Partial      bool        `json:"partial"`
}

// handleStatus reports whether a run is active and summarizes the
// latest completed run.
func (m *Module) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := runStatus{Running: m.running, Import: m.lastStats}
	if m.lastResult != nil {
		status.RunID = m.lastResult.RunID
		status.Started = m.lastResult.StartedAt
		if !m.lastResult.FinishedAt.IsZero() {
			finished := m.lastResult.FinishedAt
			status.LastFinished = &finished
		}
		status.ResultCount = len(m.lastResult.Candidates)
		status.Hosts = len(m.lastResult.Hosts)
		status.Partial = m.lastResult.Partial
	}
	writeJSON(w, http.StatusOK, status)
}

// handleHosts returns every host from the last run.
func (m *Module) handleHosts(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastResult == nil {
		writeError(w, http.StatusNotFound, "no discovery run has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, m.lastResult.Hosts)
}

// handleCandidates returns the hosts classified as probable industrial
// devices in the last run.
func (m *Module) handleCandidates(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastResult == nil {
		writeError(w, http.StatusNotFound, "no discovery run has completed yet")
		return
	}
	candidates := m.lastResult.Candidates
	if candidates == nil {
		candidates = []*models.DiscoveredHost{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// handleDevices summarizes the inventory devices that discovery
// created (manual devices excluded).
func (m *Module) handleDevices(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "inventory is not wired")
		return
	}
	devices, err := m.store.ListDiscovered(r.Context())
	if err != nil {
		m.logger.Error("failed to list discovered devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list discovered devices")
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleLogs streams the run log as plain text. While a run is active
// the response follows new lines until the run finishes or the client
// goes away.
func (m *Module) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher, canFlush := w.(http.Flusher)

	written := 0
	emit := func() {
		entries := m.runLog.Entries()
		for ; written < len(entries); written++ {
			e := entries[written]
			fmt.Fprintf(w, "%s [%s] %s\n", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
		}
		if canFlush {
			flusher.Flush()
		}
	}

	emit()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for m.isRunning() {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			emit()
		}
	}
	emit()
}

// handleInterfaces lists the machine's scannable network interfaces.
func (m *Module) handleInterfaces(w http.ResponseWriter, _ *http.Request) {
	ifaces, err := EnumerateInterfaces()
	if err != nil {
		m.logger.Error("failed to enumerate interfaces", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enumerate interfaces")
		return
	}
	writeJSON(w, http.StatusOK, ifaces)
}
