package discovery

// Event topics published by the Discovery module.
const (
	TopicRunStarted   = "discovery.run.started"
	TopicRunProgress  = "discovery.run.progress"
	TopicRunCompleted = "discovery.run.completed"
	TopicDeviceFound  = "discovery.device.found"
)

// RunEvent is the payload for run lifecycle topics.
type RunEvent struct {
	RunID      string `json:"run_id"`
	Phase      string `json:"phase,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Hosts      int    `json:"hosts,omitempty"`
	Candidates int    `json:"candidates,omitempty"`
	Partial    bool   `json:"partial,omitempty"`
}

// DeviceFoundEvent is published for every candidate imported into the
// inventory.
type DeviceFoundEvent struct {
	IP         string `json:"ip"`
	MAC        string `json:"mac,omitempty"`
	Type       string `json:"type,omitempty"`
	Confidence int    `json:"confidence"`
}
