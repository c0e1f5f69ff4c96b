package discovery

import "time"

// IndustrialPorts are the TCP ports probed during the active sweep.
// They cover the common industrial protocols plus the management
// surfaces PLCs usually expose alongside them.
var IndustrialPorts = []int{
	502,   // Modbus TCP
	1502,  // Modbus TCP (alternate)
	102,   // S7comm / ISO-TSAP
	44818, // EtherNet/IP explicit messaging
	2222,  // EtherNet/IP implicit messaging
	5555,  // Rockwell legacy
	1911,  // Niagara Fox
	4840,  // OPC UA
	48400, // OPC UA (alternate)
	48401,
	48402,
	161, // SNMP
	162, // SNMP trap
	80,  // HTTP management UI
	443, // HTTPS management UI
	8080,
	20000, // DNP3
	20001,
	20002,
	21, // FTP (firmware upload on older PLCs)
	23, // Telnet
}

// Config holds the Discovery module configuration.
type Config struct {
	DeepScan            bool          `mapstructure:"deep_scan"`
	DeepScanHostTimeout time.Duration `mapstructure:"-"`
	MaxWorkers          int           `mapstructure:"max_workers"`
	WorkersPerInterface int           `mapstructure:"workers_per_interface"`
	PassiveBase         time.Duration `mapstructure:"passive_base"`
	ARPTimeout          time.Duration `mapstructure:"arp_timeout"`
	ResultFile          string        `mapstructure:"result_file"`
	Schedule            time.Duration `mapstructure:"-"`
	SNMPCommunity       string        `mapstructure:"snmp_community"`
	AutoActivate        bool          `mapstructure:"auto_activate"`
	Overwrite           bool          `mapstructure:"overwrite"`

	// Interfaces restricts a run to the named interfaces. Empty means
	// every scannable interface.
	Interfaces []string `mapstructure:"interfaces"`
}

// DefaultConfig returns the default configuration for the Discovery module.
func DefaultConfig() Config {
	return Config{
		DeepScan:            true,
		DeepScanHostTimeout: 300 * time.Second,
		MaxWorkers:          32,
		WorkersPerInterface: 8,
		PassiveBase:         10 * time.Second,
		ARPTimeout:          maxARPTimeout,
		ResultFile:          "./data/discovery.json",
		SNMPCommunity:       "public",
	}
}
