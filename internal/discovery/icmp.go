package discovery

import (
	"context"
	"net"
	"runtime"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// icmpChunkSize bounds how many hosts one ICMP wave probes at once, so
// a wide subnet does not open thousands of sockets.
const icmpChunkSize = 200

// ICMPSweeper pings subnets in bounded chunks.
type ICMPSweeper struct {
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewICMPSweeper creates an ICMP sweeper.
func NewICMPSweeper(timeout time.Duration, concurrency int, logger *zap.Logger) *ICMPSweeper {
	if concurrency <= 0 {
		concurrency = 32
	}
	return &ICMPSweeper{
		timeout:     icmpTimeout(timeout),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Sweep pings every host in the subnet and returns the responders.
func (s *ICMPSweeper) Sweep(ctx context.Context, subnet *net.IPNet) []string {
	hosts := ExpandSubnet(subnet)
	if len(hosts) == 0 {
		return nil
	}

	s.logger.Info("starting ICMP sweep",
		zap.String("subnet", subnet.String()),
		zap.Int("hosts", len(hosts)),
		zap.Int("chunk", icmpChunkSize))

	var alive []string
	for start := 0; start < len(hosts); start += icmpChunkSize {
		if ctx.Err() != nil {
			break
		}
		end := start + icmpChunkSize
		if end > len(hosts) {
			end = len(hosts)
		}
		alive = append(alive, s.sweepChunk(ctx, hosts[start:end])...)
	}
	return alive
}

func (s *ICMPSweeper) sweepChunk(ctx context.Context, hosts []string) []string {
	var (
		mu    sync.Mutex
		alive []string
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, s.concurrency)
	privileged := runtime.GOOS == "windows"

	for _, ip := range hosts {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ip string) {
			defer wg.Done()
			defer func() { <-sem }()
			if s.pingHost(ctx, ip, privileged) {
				mu.Lock()
				alive = append(alive, ip)
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()
	return alive
}

func (s *ICMPSweeper) pingHost(ctx context.Context, ip string, privileged bool) bool {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		s.logger.Debug("failed to create pinger", zap.String("ip", ip), zap.Error(err))
		return false
	}
	pinger.Count = 1
	pinger.Timeout = s.timeout
	pinger.SetPrivileged(privileged)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			s.logger.Debug("ping failed", zap.String("ip", ip), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// ExpandSubnet returns all host IPs in a subnet, excluding the network
// and broadcast addresses. Subnets wider than /16 return nil.
func ExpandSubnet(subnet *net.IPNet) []string {
	ones, bits := subnet.Mask.Size()
	if ones == 0 && bits == 0 {
		return nil
	}
	hostBits := bits - ones
	if hostBits > 16 || hostBits <= 1 {
		return nil
	}

	total := 1 << hostBits
	hosts := make([]string, 0, total-2)
	for i := 1; i < total-1; i++ {
		next := incrementIP(subnet.IP, i)
		if next != nil && subnet.Contains(next) {
			hosts = append(hosts, next.String())
		}
	}
	return hosts
}

// incrementIP adds offset to a base IPv4 address.
func incrementIP(base net.IP, offset int) net.IP {
	ip := make(net.IP, len(base))
	copy(ip, base)
	ip = ip.To4()
	if ip == nil {
		return nil
	}
	carry := offset
	for i := 3; i >= 0 && carry > 0; i-- {
		val := int(ip[i]) + carry
		ip[i] = byte(val % 256)
		carry = val / 256
	}
	return ip
}
