package supervisor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/markus8006/plcfleet/pkg/models"
	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "POST", Path: "/devices/{id}/start", Handler: m.handleStart},
		{Method: "POST", Path: "/devices/{id}/stop", Handler: m.handleStop},
		{Method: "GET", Path: "/devices/{id}/cache", Handler: m.handleCache},
		{Method: "GET", Path: "/devices/{id}/logs", Handler: m.handleLogs},
		{Method: "POST", Path: "/devices/{id}/write", Handler: m.handleWrite},
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

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// handleStatus returns every poller's state keyed by device id.
func (m *Module) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if m.sup == nil {
		writeJSON(w, http.StatusOK, map[string]Status{})
		return
	}
	out := make(map[string]Status)
	for id, s := range m.sup.Statuses() {
		out[labelDeviceID(id)] = s
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStart launches a poller. Accepted even though connecting may
// still fail afterwards; a running poller is a conflict.
func (m *Module) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	err = m.sup.StartPoller(r.Context(), id)
	var cfgErr *models.ConfigError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "starting"})
	case errors.Is(err, ErrUnknownDevice):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "poller already running")
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, cfgErr.Error())
	default:
		m.logger.Error("failed to start poller", zap.Int64("device_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start poller")
	}
}

// handleStop stops a poller. Stop is idempotent: stopping a device
// with no poller still reports accepted.
func (m *Module) handleStop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if err := m.sup.StopPoller(r.Context(), id); err != nil && !errors.Is(err, ErrNotRunning) {
		m.logger.Error("failed to stop poller", zap.Int64("device_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to stop poller")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// handleCache returns the latest decoded values for a device.
func (m *Module) handleCache(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	p, ok := m.sup.PollerFor(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no poller for device")
		return
	}
	writeJSON(w, http.StatusOK, p.CacheSnapshot())
}

// handleLogs returns the device's journal ring.
func (m *Module) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	dev, err := m.source.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, m.journal.Entries(dev.IP))
}

// writeRequest is the body for POST /devices/{id}/write.
type writeRequest struct {
	RegisterType models.RegisterType `json:"register_type"`
	Address      int                 `json:"address"`
	Value        uint16              `json:"value"`
}

// handleWrite performs a single register or coil write on a device.
func (m *Module) handleWrite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RegisterType != models.RegisterHolding && req.RegisterType != models.RegisterCoil {
		writeError(w, http.StatusBadRequest, "writes support holding registers and coils only")
		return
	}
	if req.Address < 0 {
		writeError(w, http.StatusBadRequest, "address must be non-negative")
		return
	}

	dev, err := m.source.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	a, err := m.adapters.Resolve(dev.Protocol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !a.Write(r.Context(), dev, req.RegisterType, req.Address, req.Value) {
		writeError(w, http.StatusBadGateway, "write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "written"})
}
