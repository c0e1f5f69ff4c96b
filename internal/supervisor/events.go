package supervisor

// Event topics published by the Supervisor module.
const (
	TopicPollerState    = "supervisor.poller.state"
	TopicReadingFlushed = "supervisor.reading.flushed"
)

// PollerStateEvent is the payload for poller state transitions.
type PollerStateEvent struct {
	DeviceID int64  `json:"device_id"`
	IP       string `json:"ip"`
	State    string `json:"state"`
}

// ReadingFlushedEvent is the payload for a persisted reading batch.
type ReadingFlushedEvent struct {
	DeviceID int64 `json:"device_id"`
	Count    int   `json:"count"`
}
