package supervisor

import "time"

// Config holds the polling engine tunables.
type Config struct {
	DefaultIntervalMs int           // device default polling interval
	DefaultTimeoutMs  int           // device default per-call timeout
	Tick              time.Duration // poll loop wakeup period
	IdleBackoff       time.Duration // sleep when a device has no active registers
	ReconnectBackoff  time.Duration // wait between reconnect attempts
	StopGrace         time.Duration // how long Stop waits for a poller to exit
	ShutdownDeadline  time.Duration // bound on stopping the whole fleet
	SupervisorTick    time.Duration // dead-poller sweep period
	FlushRetries      int           // persistence retries before dropping a batch
	InterBatchDelay   time.Duration // pause between batch reads on one device
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultIntervalMs: 1000,
		DefaultTimeoutMs:  3000,
		Tick:              500 * time.Millisecond,
		IdleBackoff:       5 * time.Second,
		ReconnectBackoff:  2 * time.Second,
		StopGrace:         2 * time.Second,
		ShutdownDeadline:  10 * time.Second,
		SupervisorTick:    5 * time.Second,
		FlushRetries:      3,
		InterBatchDelay:   50 * time.Millisecond,
	}
}
