package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

// Pipeline runs the discovery phases in order: interface enumeration,
// passive sniff, active ARP sweep, ARP cache blend, ICMP sweep, TCP
// probe, optional deep scan, SNMP enrichment, dedup, classification.
// Phase failures degrade the run to partial instead of aborting it.
type Pipeline struct {
	cfg     Config
	sniffer *PassiveSniffer
	sweep   *ARPSweeper
	arp     *ARPReader
	icmp    *ICMPSweeper
	tcp     *TCPProber
	deep    *DeepScanner
	snmp    *SNMPEnricher
	logger  *zap.Logger

	onProgress func(phase string, detail string)
}

// NewPipeline wires a pipeline from the configured scanners.
func NewPipeline(cfg Config, logger *zap.Logger, onProgress func(phase, detail string)) *Pipeline {
	perIface := cfg.WorkersPerInterface
	if perIface <= 0 {
		perIface = 8
	}
	return &Pipeline{
		cfg:        cfg,
		sniffer:    NewPassiveSniffer(logger.Named("passive")),
		sweep:      NewARPSweeper(cfg.ARPTimeout, logger.Named("arpsweep")),
		arp:        NewARPReader(logger.Named("arp")),
		icmp:       NewICMPSweeper(maxICMPTimeout, perIface*4, logger.Named("icmp")),
		tcp:        NewTCPProber(maxTCPTimeout, perIface*2, logger.Named("tcp")),
		deep:       NewDeepScanner(cfg.DeepScanHostTimeout, logger.Named("nmap")),
		snmp:       NewSNMPEnricher(cfg.SNMPCommunity, 2*time.Second, logger.Named("snmp")),
		logger:     logger,
		onProgress: onProgress,
	}
}

type phase struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes one full discovery pass and returns the run result.
func (p *Pipeline) Run(ctx context.Context, runID string) *RunResult {
	result := &RunResult{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}

	hosts := newHostSet()

	phases := []phase{
		{"interfaces", func(ctx context.Context) error {
			ifaces, err := EnumerateInterfaces()
			if err != nil {
				return err
			}
			result.Interfaces = selectInterfaces(scannable(ifaces), p.cfg.Interfaces)
			return nil
		}},
		{"passive", func(ctx context.Context) error {
			return p.runPassive(ctx, result.Interfaces, hosts)
		}},
		{"arp", func(ctx context.Context) error {
			return p.runARPSweep(ctx, result.Interfaces, hosts)
		}},
		{"arp_cache", func(ctx context.Context) error {
			p.runARPCache(ctx, result.Interfaces, hosts)
			return nil
		}},
		{"icmp", func(ctx context.Context) error {
			p.runICMP(ctx, result.Interfaces, hosts)
			return nil
		}},
		{"tcp", func(ctx context.Context) error {
			p.runTCP(ctx, hosts)
			return nil
		}},
		{"deep_scan", func(ctx context.Context) error {
			p.runDeepScan(ctx, hosts)
			return nil
		}},
		{"snmp", func(ctx context.Context) error {
			p.runSNMP(hosts)
			return nil
		}},
	}

	for _, ph := range phases {
		if ctx.Err() != nil {
			result.Partial = true
			result.Errors = append(result.Errors, "run cancelled during "+ph.name)
			break
		}
		p.progress(ph.name, "started")
		if err := ph.run(ctx); err != nil {
			result.Partial = true
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ph.name, err))
			p.logger.Warn("discovery phase degraded",
				zap.String("phase", ph.name),
				zap.Error(err))
		}
		p.progress(ph.name, "finished")
	}

	all := Deduplicate(hosts.all())
	for _, h := range all {
		annotateServices(h)
		Classify(h)
	}
	result.Hosts = all
	for _, h := range all {
		if IsCandidate(h) {
			result.Candidates = append(result.Candidates, h)
		}
	}
	result.FinishedAt = time.Now().UTC()

	p.logger.Info("discovery run complete",
		zap.String("run_id", runID),
		zap.Int("hosts", len(result.Hosts)),
		zap.Int("candidates", len(result.Candidates)),
		zap.Bool("partial", result.Partial))
	return result
}

// scannable filters interfaces worth sweeping: tunnels and virtual
// bridges rarely carry plant traffic but stay listed for the operator.
func scannable(ifaces []NetworkInterface) []NetworkInterface {
	out := make([]NetworkInterface, 0, len(ifaces))
	for _, ni := range ifaces {
		if ni.HostCount() > 0 {
			out = append(out, ni)
		}
	}
	return out
}

// selectInterfaces keeps only the named interfaces. An empty name list
// keeps everything.
func selectInterfaces(ifaces []NetworkInterface, names []string) []NetworkInterface {
	if len(names) == 0 {
		return ifaces
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make([]NetworkInterface, 0, len(ifaces))
	for _, ni := range ifaces {
		if wanted[ni.Name] {
			out = append(out, ni)
		}
	}
	return out
}

func (p *Pipeline) runPassive(ctx context.Context, ifaces []NetworkInterface, hosts *hostSet) error {
	var firstErr error
	for _, ni := range ifaces {
		if ni.Type == InterfaceTunnel || ni.Type == InterfaceVirtual {
			continue
		}
		window := passiveWindow(p.cfg.PassiveBase, ni.HostCount())
		obs, err := p.sniffer.Sniff(ctx, ni.Name, window)
		if err != nil && firstErr == nil && ctx.Err() == nil {
			firstErr = err
		}
		for _, o := range obs {
			h := hosts.get(o.IP)
			h.MAC = o.MAC
			h.Interface = ni.Name
			h.Network = ni.Network
			h.Via(models.ViaPassive)
		}
	}
	return firstErr
}

// runARPSweep actively resolves each interface's network. Replies are
// authoritative and overwrite passively learned MACs.
func (p *Pipeline) runARPSweep(ctx context.Context, ifaces []NetworkInterface, hosts *hostSet) error {
	var firstErr error
	for _, ni := range ifaces {
		if ni.Type == InterfaceTunnel || ni.Type == InterfaceVirtual {
			continue
		}
		table, err := p.sweep.Sweep(ctx, ni)
		if err != nil && firstErr == nil && ctx.Err() == nil {
			firstErr = err
		}
		for ip, mac := range table {
			h := hosts.get(ip)
			h.MAC = mac
			h.Interface = ni.Name
			h.Network = ni.Network
			h.Via(models.ViaARP)
		}
	}
	return firstErr
}

func (p *Pipeline) runARPCache(ctx context.Context, ifaces []NetworkInterface, hosts *hostSet) {
	arpCtx, cancel := context.WithTimeout(ctx, arpTimeout(p.cfg.ARPTimeout))
	defer cancel()

	for ip, mac := range p.arp.ReadTable(arpCtx) {
		h := hosts.get(ip)
		if h.MAC == "" {
			h.MAC = mac
		}
		if h.Network == "" {
			h.Network = networkFor(ip, ifaces)
		}
		h.Via(models.ViaARP)
	}
}

func (p *Pipeline) runICMP(ctx context.Context, ifaces []NetworkInterface, hosts *hostSet) {
	for _, ni := range ifaces {
		if ni.Type == InterfaceTunnel || ni.Type == InterfaceVirtual {
			continue
		}
		_, ipNet, err := net.ParseCIDR(ni.Network)
		if err != nil {
			continue
		}
		for _, ip := range p.icmp.Sweep(ctx, ipNet) {
			h := hosts.get(ip)
			h.RespondsToPing = true
			h.Interface = ni.Name
			h.Network = ni.Network
			h.Via(models.ViaICMP)
		}
	}
}

func (p *Pipeline) runTCP(ctx context.Context, hosts *hostSet) {
	workers := p.cfg.MaxWorkers
	if workers <= 0 {
		workers = 32
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for _, h := range hosts.all() {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(h *models.DiscoveredHost) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, port := range p.tcp.Probe(ctx, h.IP, nil) {
				hosts.mu.Lock()
				h.MarkPortOpen(port, "tcp_connect")
				h.Via(models.ViaTCP)
				hosts.mu.Unlock()
			}
		}(h)
	}
	wg.Wait()
}

func (p *Pipeline) runDeepScan(ctx context.Context, hosts *hostSet) {
	if !p.cfg.DeepScan {
		return
	}
	if !p.deep.Available() {
		p.logger.Info("nmap not found, skipping deep scan")
		return
	}
	for _, h := range hosts.all() {
		if ctx.Err() != nil {
			return
		}
		if !hasIndustrialPort(h) {
			continue
		}
		p.deep.ScanHost(ctx, h)
	}
}

func (p *Pipeline) runSNMP(hosts *hostSet) {
	for _, h := range hosts.all() {
		p.snmp.Enrich(h)
	}
}

func (p *Pipeline) progress(phase, detail string) {
	if p.onProgress != nil {
		p.onProgress(phase, detail)
	}
}

// networkFor finds the interface network containing ip.
func networkFor(ip string, ifaces []NetworkInterface) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	for _, ni := range ifaces {
		_, ipNet, err := net.ParseCIDR(ni.Network)
		if err == nil && ipNet.Contains(parsed) {
			return ni.Network
		}
	}
	return ""
}

// hostSet accumulates per-IP host records across phases.
type hostSet struct {
	mu    sync.Mutex
	hosts map[string]*models.DiscoveredHost
}

func newHostSet() *hostSet {
	return &hostSet{hosts: make(map[string]*models.DiscoveredHost)}
}

func (s *hostSet) get(ip string) *models.DiscoveredHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[ip]
	if !ok {
		h = models.NewDiscoveredHost(ip)
		s.hosts[ip] = h
	}
	return h
}

func (s *hostSet) all() []*models.DiscoveredHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.DiscoveredHost, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	return out
}
