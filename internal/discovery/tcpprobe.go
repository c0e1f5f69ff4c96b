package discovery

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPProber connect-scans the industrial port set.
type TCPProber struct {
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewTCPProber creates a TCP connect prober.
func NewTCPProber(timeout time.Duration, concurrency int, logger *zap.Logger) *TCPProber {
	if concurrency <= 0 {
		concurrency = 16
	}
	return &TCPProber{
		timeout:     tcpTimeout(timeout),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Probe checks which of the given ports are open on the target IP.
// A nil ports slice probes the full industrial set.
func (p *TCPProber) Probe(ctx context.Context, ip string, ports []int) []int {
	if ports == nil {
		ports = IndustrialPorts
	}

	var (
		mu   sync.Mutex
		open []int
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, p.concurrency)

	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(port int) {
			defer wg.Done()
			defer func() { <-sem }()
			if p.isOpen(ctx, ip, port) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()

	sort.Ints(open)
	p.logger.Debug("tcp probe complete",
		zap.String("ip", ip),
		zap.Ints("open", open))
	return open
}

func (p *TCPProber) isOpen(ctx context.Context, ip string, port int) bool {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
