package inventory

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// registerImportFile is the on-disk register map format. Plant engineers
// maintain these per device, one entry per tag.
type registerImportFile struct {
	Registers []registerImportEntry `yaml:"registers"`
}

type registerImportEntry struct {
	Name         string  `yaml:"name"`
	Address      int     `yaml:"address"`
	Count        int     `yaml:"count"`
	RegisterType string  `yaml:"register_type"`
	DataType     string  `yaml:"data_type"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	Offset       float64 `yaml:"offset"`
	Unit         string  `yaml:"unit"`
	IntervalMs   int     `yaml:"interval_ms"`
	Active       *bool   `yaml:"active"`
}

// ImportStats summarizes a register map import.
type ImportStats struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// handleImportRegisters accepts a YAML register map for one device and
// creates the configs it describes. Entries that fail validation are
// reported per entry and do not abort the rest of the file.
func (m *Module) handleImportRegisters(w http.ResponseWriter, r *http.Request) {
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

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var file registerImportFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		writeError(w, http.StatusBadRequest, "invalid YAML: "+err.Error())
		return
	}
	if len(file.Registers) == 0 {
		writeError(w, http.StatusBadRequest, "register map contains no registers")
		return
	}

	stats := ImportStats{Errors: []string{}}
	for i, entry := range file.Registers {
		c := entryToConfig(id, entry)
		if err := m.store.CreateRegisterConfig(r.Context(), c); err != nil {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("entry %d (%s): %v", i, entry.Name, err))
			continue
		}
		stats.Imported++
	}

	m.logger.Info("register map imported",
		zap.Int64("device_id", id),
		zap.Int("imported", stats.Imported),
		zap.Int("errors", len(stats.Errors)),
	)
	writeJSON(w, http.StatusOK, stats)
}

func entryToConfig(deviceID int64, e registerImportEntry) *models.RegisterConfig {
	c := &models.RegisterConfig{
		DeviceID:     deviceID,
		Name:         e.Name,
		Address:      e.Address,
		Count:        e.Count,
		RegisterType: models.RegisterType(e.RegisterType),
		DataType:     models.DataType(e.DataType),
		ScaleFactor:  e.ScaleFactor,
		Offset:       e.Offset,
		Unit:         e.Unit,
		IntervalMs:   e.IntervalMs,
		Active:       true,
	}
	if c.RegisterType == "" {
		c.RegisterType = models.RegisterHolding
	}
	if c.DataType == "" {
		c.DataType = models.DataUint16
	}
	if c.Count == 0 {
		c.Count = c.DataType.Width()
	}
	if e.Active != nil {
		c.Active = *e.Active
	}
	return c
}
