package supervisor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/markus8006/plcfleet/internal/adapter"
	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

// State is a poller lifecycle state.
type State string

const (
	StateCreated      State = "created"
	StateStarting     State = "starting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
)

// defaultModbusPort is used when a device declares no ports.
const defaultModbusPort = 502

// Status is a point-in-time snapshot of one poller.
type Status struct {
	DeviceID     int64     `json:"device_id"`
	IP           string    `json:"ip"`
	State        State     `json:"state"`
	Running      bool      `json:"running"`
	LastError    string    `json:"last_error,omitempty"`
	LastGoodRead time.Time `json:"last_good_read,omitempty"`
}

// RegisterSource is the inventory surface the poller needs.
type RegisterSource interface {
	GetByID(ctx context.Context, id int64) (*models.Device, error)
	ListActive(ctx context.Context) ([]models.Device, error)
	ListActiveRegisterConfigs(ctx context.Context, deviceID int64) ([]models.RegisterConfig, error)
	SetOnline(ctx context.Context, id int64, online bool) error
	SetLastConnection(ctx context.Context, id int64, ts time.Time) error
}

// ReadingSink is the history surface the poller needs.
type ReadingSink interface {
	AppendBatch(ctx context.Context, readings []models.Reading) error
}

// Poller owns the read loop for one device. It connects, batches the
// device's active registers, decodes and caches values, and flushes
// readings to history. Failures degrade into reconnect cycles; only
// configuration errors stop a poller.
type Poller struct {
	dev     *models.Device
	adapter adapter.Adapter
	source  RegisterSource
	sink    ReadingSink
	journal *adapter.Journal
	cache   *Cache
	cfg     Config
	logger  *zap.Logger
	onState func(deviceID int64, ip string, state State)
	onFlush func(deviceID int64, count int)

	mu           sync.Mutex
	state        State
	lastErr      error
	lastGoodRead time.Time
	lastReadAt   map[int64]time.Time
	lastStamp    time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller builds a poller for the given device.
func NewPoller(dev *models.Device, a adapter.Adapter, source RegisterSource, sink ReadingSink,
	journal *adapter.Journal, cfg Config, logger *zap.Logger,
	onState func(deviceID int64, ip string, state State)) *Poller {
	return &Poller{
		dev:        dev,
		adapter:    a,
		source:     source,
		sink:       sink,
		journal:    journal,
		cache:      NewCache(),
		cfg:        cfg,
		logger:     logger.With(zap.Int64("device_id", dev.ID), zap.String("ip", dev.IP)),
		onState:    onState,
		state:      StateCreated,
		lastReadAt: make(map[int64]time.Time),
		done:       make(chan struct{}),
	}
}

// Start launches the poll loop. Returns immediately.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

// Stop cancels the loop and waits up to the stop grace period.
func (p *Poller) Stop() {
	p.setState(StateStopping)
	if p.cancel != nil {
		p.cancel()
	}
	select {
	case <-p.done:
	case <-time.After(p.cfg.StopGrace):
		p.logger.Warn("poller did not stop within grace period",
			zap.Duration("grace", p.cfg.StopGrace))
	}
}

// Done reports whether the loop has exited.
func (p *Poller) Done() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Status returns the current snapshot.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		DeviceID:     p.dev.ID,
		IP:           p.dev.IP,
		State:        p.state,
		Running:      p.state != StateCreated && p.state != StateStopped,
		LastGoodRead: p.lastGoodRead,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

// CacheSnapshot returns the latest decoded values.
func (p *Poller) CacheSnapshot() map[int64]CacheEntry {
	return p.cache.Snapshot()
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	p.mu.Unlock()
	if changed && p.onState != nil {
		p.onState(p.dev.ID, p.dev.IP, s)
	}
}

func (p *Poller) setErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.setState(StateStopped)

	p.setState(StateStarting)
	if !p.connect(ctx) {
		return
	}
	defer func() {
		p.adapter.Disconnect(p.dev)
		p.markOffline()
	}()

	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		configs, err := p.source.ListActiveRegisterConfigs(ctx, p.dev.ID)
		if err != nil {
			p.setErr(err)
			p.logger.Error("failed to load register configs", zap.Error(err))
			continue
		}
		if len(configs) == 0 {
			p.sleep(ctx, p.cfg.IdleBackoff)
			continue
		}

		p.pollOnce(ctx, configs)
	}
}

// connect dials the device, cycling through reconnect backoff until it
// succeeds or the context ends.
func (p *Poller) connect(ctx context.Context) bool {
	port := p.dev.PrimaryPort(defaultModbusPort)
	for {
		if ctx.Err() != nil {
			return false
		}
		if p.adapter.Connect(ctx, p.dev, port) {
			p.setState(StateConnected)
			p.markOnline()
			return true
		}
		reconnects.WithLabelValues(p.dev.IP).Inc()
		p.setState(StateReconnecting)
		p.logger.Warn("connect failed, backing off",
			zap.Int("port", port),
			zap.Duration("backoff", p.cfg.ReconnectBackoff))
		if !p.sleep(ctx, p.cfg.ReconnectBackoff) {
			return false
		}
	}
}

// pollOnce runs one pass over the device's batches, reading whichever
// batches have a member due.
func (p *Poller) pollOnce(ctx context.Context, configs []models.RegisterConfig) {
	loopStart := time.Now()
	deviceDefault := p.dev.PollingInterval()
	batches := BuildBatches(configs)

	var pending []models.Reading
	for i, b := range batches {
		if ctx.Err() != nil {
			return
		}
		if !p.batchDue(&batches[i], loopStart, deviceDefault) {
			continue
		}

		raw := p.adapter.Read(ctx, p.dev, b.Type, b.Start, b.Count)
		if raw == nil {
			readErrors.WithLabelValues(p.dev.IP).Inc()
			p.setErr(errReadFailed)
			if !p.reconnect(ctx) {
				return
			}
			continue
		}

		pending = append(pending, p.decodeBatch(&batches[i], raw, loopStart)...)

		p.mu.Lock()
		p.lastGoodRead = loopStart
		p.mu.Unlock()

		if i < len(batches)-1 {
			p.sleep(ctx, p.cfg.InterBatchDelay)
		}
	}

	if len(pending) > 0 {
		p.flush(ctx, pending)
	}
}

// batchDue reports whether any member of the batch is due for a read.
func (p *Poller) batchDue(b *Batch, now time.Time, deviceDefault time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range b.Members {
		c := &b.Members[i]
		last, seen := p.lastReadAt[c.ID]
		if !seen || now.Sub(last) >= c.Interval(deviceDefault) {
			return true
		}
	}
	return false
}

// decodeBatch slices each member's words out of the raw response,
// decodes and scales them, updates the cache, and returns the readings
// to persist. Timestamps within one poller are strictly monotonic.
func (p *Poller) decodeBatch(b *Batch, raw []uint16, loopStart time.Time) []models.Reading {
	order := p.dev.WordOrder()

	readings := make([]models.Reading, 0, len(b.Members))
	for i := range b.Members {
		c := &b.Members[i]
		off := b.Offset(c)
		if off < 0 || off+c.Count > len(raw) {
			continue
		}

		rawVal := decodeRaw(raw[off:off+c.Count], c.DataType, order)
		scaled, quality := scale(rawVal, c.ScaleFactor, c.Offset)
		ts := p.nextStamp(loopStart)

		p.cache.Put(c.ID, CacheEntry{
			Name:      c.Name,
			Value:     scaled,
			Timestamp: ts,
			Address:   c.Address,
			Quality:   quality,
			Unit:      c.Unit,
		})
		readings = append(readings, models.Reading{
			RegisterID:  c.ID,
			Timestamp:   ts,
			RawValue:    rawVal,
			ScaledValue: scaled,
			Quality:     quality,
		})

		p.mu.Lock()
		p.lastReadAt[c.ID] = loopStart
		p.mu.Unlock()
	}
	return readings
}

// nextStamp returns a timestamp that never goes backwards within this
// poller, even when the wall clock does.
func (p *Poller) nextStamp(candidate time.Time) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !candidate.After(p.lastStamp) {
		candidate = p.lastStamp.Add(time.Microsecond)
	}
	p.lastStamp = candidate
	return candidate
}

// flush persists a reading batch, retrying with exponential backoff.
// After the final attempt the batch is dropped and counted; the cache
// keeps serving the values either way.
func (p *Poller) flush(ctx context.Context, readings []models.Reading) {
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt <= p.cfg.FlushRetries; attempt++ {
		if attempt > 0 {
			if !p.sleep(ctx, backoff) {
				return
			}
			backoff *= 4
		}
		err := p.sink.AppendBatch(ctx, readings)
		if err == nil {
			readingsPersisted.WithLabelValues(p.dev.IP).Add(float64(len(readings)))
			if p.onFlush != nil {
				p.onFlush(p.dev.ID, len(readings))
			}
			return
		}
		p.setErr(err)
		p.logger.Warn("failed to persist readings",
			zap.Int("attempt", attempt+1),
			zap.Int("count", len(readings)),
			zap.Error(err))
	}
	flushDrops.WithLabelValues(p.dev.IP).Inc()
	p.journal.Record(p.dev.IP, "error", "dropped %d readings after %d attempts",
		len(readings), p.cfg.FlushRetries+1)
}

// reconnect drops and re-establishes the connection after a failed
// read. Returns false when the context ended first.
func (p *Poller) reconnect(ctx context.Context) bool {
	p.adapter.Disconnect(p.dev)
	p.setState(StateReconnecting)
	p.markOffline()
	if !p.sleep(ctx, p.cfg.ReconnectBackoff) {
		return false
	}
	return p.connect(ctx)
}

func (p *Poller) markOnline() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.source.SetOnline(ctx, p.dev.ID, true); err != nil {
		p.logger.Warn("failed to mark device online", zap.Error(err))
	}
	if err := p.source.SetLastConnection(ctx, p.dev.ID, time.Now()); err != nil {
		p.logger.Warn("failed to record last connection", zap.Error(err))
	}
}

func (p *Poller) markOffline() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.source.SetOnline(ctx, p.dev.ID, false); err != nil {
		p.logger.Warn("failed to mark device offline", zap.Error(err))
	}
}

// sleep waits for d or until the context ends. Returns false when the
// context ended first.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var errReadFailed = &readError{}

type readError struct{}

func (*readError) Error() string { return "batch read failed" }

// labelDeviceID is used by handlers when rendering status maps.
func labelDeviceID(id int64) string { return strconv.FormatInt(id, 10) }
