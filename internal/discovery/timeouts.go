package discovery

import "time"

// Phase timeout ceilings. Per-host budgets shrink on big networks so a
// sweep over a /16 does not take hours, but never past these caps.
const (
	maxPassiveWindow = 120 * time.Second
	maxARPTimeout    = 10 * time.Second
	maxICMPTimeout   = 5 * time.Second
	maxTCPTimeout    = 3 * time.Second
)

// passiveWindow scales the passive listening window with the size of
// the address space: base for anything up to a /24, proportionally
// longer for wider networks, capped at maxPassiveWindow.
func passiveWindow(base time.Duration, hostCount int) time.Duration {
	factor := hostCount / 256
	if factor < 1 {
		factor = 1
	}
	d := base * time.Duration(factor)
	if d > maxPassiveWindow {
		return maxPassiveWindow
	}
	return d
}

// arpTimeout bounds one ARP sweep pass.
func arpTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > maxARPTimeout {
		return maxARPTimeout
	}
	return d
}

// icmpTimeout bounds one ICMP probe.
func icmpTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > maxICMPTimeout {
		return maxICMPTimeout
	}
	return d
}

// tcpTimeout bounds one TCP connect probe.
func tcpTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > maxTCPTimeout {
		return maxTCPTimeout
	}
	return d
}
