package inventory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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

// pathID extracts the {id} path value as an int64.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// handleListDevices returns all devices, optionally filtered by ?active=true.
func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var (
		devices []models.Device
		err     error
	)
	if r.URL.Query().Get("active") == "true" {
		devices, err = m.store.ListActive(r.Context())
	} else {
		devices, err = m.store.List(r.Context())
	}
	if err != nil {
		m.logger.Error("failed to list devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleCreateDevice creates a manual device.
func (m *Module) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var d models.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := m.store.Create(r.Context(), &d); err != nil {
		var cfgErr *models.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		m.logger.Error("failed to create device", zap.String("ip", d.IP), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create device")
		return
	}

	m.publishEvent(r.Context(), TopicDeviceCreated, DeviceEvent{
		DeviceID: d.ID, IP: d.IP, Name: d.Name, Manual: d.Manual,
	})
	writeJSON(w, http.StatusCreated, d)
}

// handleGetDevice returns a single device by id.
func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	d, err := m.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		m.logger.Error("failed to get device", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice replaces the editable fields of a device.
func (m *Module) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var d models.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	d.ID = id

	if err := m.store.Update(r.Context(), &d); err != nil {
		var cfgErr *models.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusBadRequest, cfgErr.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "device not found")
		default:
			m.logger.Error("failed to update device", zap.Int64("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update device")
		}
		return
	}

	m.publishEvent(r.Context(), TopicDeviceUpdated, DeviceEvent{
		DeviceID: d.ID, IP: d.IP, Name: d.Name, Manual: d.Manual,
	})
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device and its register configs.
func (m *Module) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	d, err := m.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		m.logger.Error("failed to load device", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}

	if err := m.store.Delete(r.Context(), id); err != nil {
		m.logger.Error("failed to delete device", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}

	m.publishEvent(r.Context(), TopicDeviceRemoved, DeviceEvent{
		DeviceID: d.ID, IP: d.IP, Name: d.Name, Manual: d.Manual,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleListRegisters returns the register configs for a device.
func (m *Module) handleListRegisters(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if _, err := m.store.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load device")
		return
	}

	configs, err := m.store.ListRegisterConfigs(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to list register configs", zap.Int64("device_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list register configs")
		return
	}
	if configs == nil {
		configs = []models.RegisterConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

// handleCreateRegister adds a register config to a device.
func (m *Module) handleCreateRegister(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var c models.RegisterConfig
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c.DeviceID = id

	if err := m.store.CreateRegisterConfig(r.Context(), &c); err != nil {
		var cfgErr *models.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusBadRequest, cfgErr.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "device not found")
		default:
			m.logger.Error("failed to create register config",
				zap.Int64("device_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create register config")
		}
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleUpdateRegister replaces a register config.
func (m *Module) handleUpdateRegister(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid register id")
		return
	}

	var c models.RegisterConfig
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c.ID = id

	if err := m.store.UpdateRegisterConfig(r.Context(), &c); err != nil {
		var cfgErr *models.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusBadRequest, cfgErr.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "register config not found")
		default:
			m.logger.Error("failed to update register config", zap.Int64("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update register config")
		}
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteRegister removes a register config.
func (m *Module) handleDeleteRegister(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid register id")
		return
	}

	if err := m.store.DeleteRegisterConfig(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "register config not found")
			return
		}
		m.logger.Error("failed to delete register config", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete register config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
