package inventory

import (
	"database/sql"

	"github.com/markus8006/plcfleet/pkg/plugin"
)

// migrations returns the Inventory module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create devices and register_configs tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE devices (
						id                  INTEGER PRIMARY KEY AUTOINCREMENT,
						name                TEXT    NOT NULL DEFAULT '',
						ip                  TEXT    NOT NULL UNIQUE,
						mac                 TEXT    NOT NULL DEFAULT '',
						subnet              TEXT    NOT NULL DEFAULT '',
						ports               TEXT    NOT NULL DEFAULT '[]',
						protocol            TEXT    NOT NULL DEFAULT 'modbus_tcp',
						unit_id             INTEGER NOT NULL DEFAULT 1,
						polling_interval_ms INTEGER NOT NULL DEFAULT 1000,
						timeout_ms          INTEGER NOT NULL DEFAULT 3000,
						active              INTEGER NOT NULL DEFAULT 0,
						online              INTEGER NOT NULL DEFAULT 0,
						last_connection     DATETIME,
						manual              INTEGER NOT NULL DEFAULT 0,
						info                TEXT    NOT NULL DEFAULT '{}',
						created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE UNIQUE INDEX idx_devices_ip ON devices(ip)`,
					`CREATE INDEX idx_devices_active ON devices(active)`,
					`CREATE TABLE register_configs (
						id            INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id     INTEGER NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						name          TEXT    NOT NULL,
						address       INTEGER NOT NULL,
						count         INTEGER NOT NULL DEFAULT 1,
						register_type TEXT    NOT NULL DEFAULT 'holding',
						data_type     TEXT    NOT NULL DEFAULT 'uint16',
						scale_factor  REAL    NOT NULL DEFAULT 1.0,
						offset        REAL    NOT NULL DEFAULT 0.0,
						unit          TEXT    NOT NULL DEFAULT '',
						interval_ms   INTEGER NOT NULL DEFAULT 0,
						active        INTEGER NOT NULL DEFAULT 1,
						UNIQUE (device_id, address, register_type)
					)`,
					`CREATE INDEX idx_register_configs_device ON register_configs(device_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
