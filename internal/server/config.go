package server

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "")

	// Plugin defaults
	v.SetDefault("plugins.inventory.enabled", true)
	v.SetDefault("plugins.history.enabled", true)
	v.SetDefault("plugins.history.retention_days", 30)
	v.SetDefault("plugins.supervisor.enabled", true)
	v.SetDefault("plugins.supervisor.default_interval_ms", 1000)
	v.SetDefault("plugins.supervisor.default_timeout_ms", 3000)
	v.SetDefault("plugins.supervisor.tick", "500ms")
	v.SetDefault("plugins.supervisor.idle_backoff", "5s")
	v.SetDefault("plugins.supervisor.reconnect_backoff", "2s")
	v.SetDefault("plugins.supervisor.stop_grace", "2s")
	v.SetDefault("plugins.supervisor.shutdown_deadline", "10s")
	v.SetDefault("plugins.supervisor.supervisor_tick", "5s")
	v.SetDefault("plugins.discovery.enabled", true)
	v.SetDefault("plugins.discovery.deep_scan", true)
	v.SetDefault("plugins.discovery.deep_scan_timeout_s", 300)
	v.SetDefault("plugins.discovery.max_workers", 32)
	v.SetDefault("plugins.discovery.workers_per_interface", 8)
	v.SetDefault("plugins.discovery.passive_base", "10s")
	v.SetDefault("plugins.discovery.result_file", "./data/discovery.json")
	v.SetDefault("plugins.discovery.schedule", "")
	v.SetDefault("plugins.discovery.snmp_community", "public")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("plcfleet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/plcfleet")
	}

	// Environment variable support: PF_SERVER_PORT=9090
	v.SetEnvPrefix("PF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare environment names kept for compatibility with existing
	// deployments of the supervisor.
	legacyEnv := map[string]string{
		"server.data_dir":                        "DATA_DIR",
		"plugins.discovery.result_file":          "DISCOVERY_FILE",
		"plugins.supervisor.default_interval_ms": "POLL_DEFAULT_INTERVAL_MS",
		"plugins.supervisor.default_timeout_ms":  "POLL_DEFAULT_TIMEOUT_MS",
		"plugins.history.retention_days":         "RETENTION_DAYS",
		"plugins.discovery.deep_scan":            "USE_DEEP_SCAN",
		"plugins.discovery.deep_scan_timeout_s":  "DEEP_SCAN_PER_HOST_TIMEOUT_S",
		"plugins.discovery.max_workers":          "MAX_TOTAL_WORKERS",
	}
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
