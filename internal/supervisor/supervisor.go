package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markus8006/plcfleet/internal/adapter"
	"go.uber.org/zap"
)

// Errors reported by the supervisor's lifecycle operations.
var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrAlreadyRunning = errors.New("poller already running")
	ErrNotRunning     = errors.New("poller not running")
)

// Supervisor owns the fleet of pollers. It starts and stops them on
// demand, and its sweep loop re-creates pollers that died while their
// device is still active.
type Supervisor struct {
	source   RegisterSource
	sink     ReadingSink
	adapters *adapter.Registry
	journal  *adapter.Journal
	cfg      Config
	logger   *zap.Logger
	onState  func(deviceID int64, ip string, state State)
	onFlush  func(deviceID int64, count int)

	mu      sync.Mutex
	pollers map[int64]*Poller
}

// NewSupervisor creates a supervisor with no running pollers.
func NewSupervisor(source RegisterSource, sink ReadingSink, adapters *adapter.Registry,
	journal *adapter.Journal, cfg Config, logger *zap.Logger,
	onState func(deviceID int64, ip string, state State)) *Supervisor {
	return &Supervisor{
		source:   source,
		sink:     sink,
		adapters: adapters,
		journal:  journal,
		cfg:      cfg,
		logger:   logger,
		onState:  onState,
		pollers:  make(map[int64]*Poller),
	}
}

// OnFlush installs a callback invoked after each persisted reading
// batch. Set before the first poller starts.
func (s *Supervisor) OnFlush(fn func(deviceID int64, count int)) {
	s.onFlush = fn
}

// StartPoller launches a poller for the device. Starting an unknown
// device returns ErrUnknownDevice; starting a running one returns
// ErrAlreadyRunning. Configuration problems (bad protocol, invalid
// device) are fatal and reported immediately rather than retried.
func (s *Supervisor) StartPoller(ctx context.Context, deviceID int64) error {
	dev, err := s.source.GetByID(ctx, deviceID)
	if err != nil {
		return ErrUnknownDevice
	}
	if err := dev.Validate(); err != nil {
		return err
	}
	a, err := s.adapters.Resolve(dev.Protocol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pollers[deviceID]; ok && !p.Done() {
		return ErrAlreadyRunning
	}

	p := NewPoller(dev, a, s.source, s.sink, s.journal, s.cfg, s.logger, s.onState)
	p.onFlush = s.onFlush
	s.pollers[deviceID] = p
	p.Start()
	activePollers.Inc()

	s.logger.Info("poller started",
		zap.Int64("device_id", deviceID),
		zap.String("ip", dev.IP))
	return nil
}

// StopPoller stops the device's poller. Stopping a device with no
// poller returns ErrNotRunning; callers treat that as success for
// idempotent stop semantics.
func (s *Supervisor) StopPoller(_ context.Context, deviceID int64) error {
	s.mu.Lock()
	p, ok := s.pollers[deviceID]
	if ok {
		delete(s.pollers, deviceID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotRunning
	}
	p.Stop()
	activePollers.Dec()
	s.logger.Info("poller stopped", zap.Int64("device_id", deviceID))
	return nil
}

// StopAll stops every poller concurrently, bounded by the shutdown
// deadline. Pollers that miss the deadline are abandoned.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	pollers := make([]*Poller, 0, len(s.pollers))
	for id, p := range s.pollers {
		pollers = append(pollers, p)
		delete(s.pollers, id)
	}
	s.mu.Unlock()

	if len(pollers) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, p := range pollers {
			wg.Add(1)
			go func(p *Poller) {
				defer wg.Done()
				p.Stop()
			}(p)
		}
		wg.Wait()
		close(done)
	}()

	deadline := time.NewTimer(s.cfg.ShutdownDeadline)
	defer deadline.Stop()
	select {
	case <-done:
	case <-deadline.C:
		s.logger.Warn("shutdown deadline exceeded, abandoning remaining pollers",
			zap.Duration("deadline", s.cfg.ShutdownDeadline))
	case <-ctx.Done():
	}
	activePollers.Set(0)
}

// Statuses returns a snapshot of every tracked poller.
func (s *Supervisor) Statuses() map[int64]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Status, len(s.pollers))
	for id, p := range s.pollers {
		out[id] = p.Status()
	}
	return out
}

// PollerFor returns the poller tracking a device, if any.
func (s *Supervisor) PollerFor(deviceID int64) (*Poller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pollers[deviceID]
	return p, ok
}

// Sweep re-creates pollers that exited while their device is still
// active, and starts pollers for active devices that have none. Called
// periodically by the module's sweep loop.
func (s *Supervisor) Sweep(ctx context.Context) {
	devices, err := s.source.ListActive(ctx)
	if err != nil {
		s.logger.Error("sweep failed to list active devices", zap.Error(err))
		return
	}

	for i := range devices {
		dev := &devices[i]

		s.mu.Lock()
		p, tracked := s.pollers[dev.ID]
		dead := tracked && p.Done()
		if dead {
			delete(s.pollers, dev.ID)
			activePollers.Dec()
		}
		s.mu.Unlock()

		if tracked && !dead {
			continue
		}
		if dead {
			s.logger.Warn("poller died, restarting",
				zap.Int64("device_id", dev.ID),
				zap.String("ip", dev.IP))
		}

		if err := s.StartPoller(ctx, dev.ID); err != nil &&
			!errors.Is(err, ErrAlreadyRunning) {
			s.logger.Error("sweep failed to start poller",
				zap.Int64("device_id", dev.ID),
				zap.Error(err))
		}
	}
}
