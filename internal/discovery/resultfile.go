package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
)

// RunResult is the persisted outcome of one discovery run.
type RunResult struct {
	RunID      string                    `json:"run_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Interfaces []NetworkInterface        `json:"interfaces"`
	Hosts      []*models.DiscoveredHost  `json:"hosts"`
	Candidates []*models.DiscoveredHost  `json:"candidates"`
	Partial    bool                      `json:"partial"`
	Errors     []string                  `json:"errors,omitempty"`
}

// WriteResultFile persists a run result atomically: written to a temp
// file in the target directory, then renamed over the destination so
// readers never see a half-written file.
func WriteResultFile(path string, result *RunResult) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".discovery-*.json")
	if err != nil {
		return fmt.Errorf("create temp result file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		tmp.Close()
		return fmt.Errorf("encode result: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close result: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename result into place: %w", err)
	}
	return nil
}

// ReadResultFile loads a previously written run result.
func ReadResultFile(path string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result file %s: %w", path, err)
	}
	return &result, nil
}
