package adapter

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	modbus "github.com/hootrhino/gomodbus"
)

var errNotConnected = errors.New("not connected")

// ClientPool holds one Modbus TCP connection per device IP. Pollers
// for registers on the same device share the connection; the per-entry
// mutex serializes requests on the wire.
type ClientPool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	mu   sync.Mutex
	api  modbus.ModbusApi
	conn net.Conn
	port int
}

// NewClientPool creates an empty pool.
func NewClientPool() *ClientPool {
	return &ClientPool{entries: make(map[string]*poolEntry)}
}

func (p *ClientPool) entry(ip string) *poolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[ip]
	if !ok {
		e = &poolEntry{}
		p.entries[ip] = e
	}
	return e
}

// connect dials the device unless a connection already exists.
func (e *poolEntry) connect(ip string, port int, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.api != nil && e.port == port {
		return nil
	}
	e.closeLocked()

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	e.conn = conn
	e.api = modbus.NewModbusTCPHandler(conn, timeout)
	e.port = port
	return nil
}

// withClient runs fn while holding the entry lock, so at most one
// request is in flight per device.
func (e *poolEntry) withClient(fn func(api modbus.ModbusApi) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.api == nil {
		return errNotConnected
	}
	return fn(e.api)
}

// close drops the connection.
func (e *poolEntry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *poolEntry) closeLocked() {
	if e.conn != nil {
		_ = e.conn.Close()
	}
	e.conn = nil
	e.api = nil
	e.port = 0
}
