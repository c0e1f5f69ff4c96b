package history

import (
	"database/sql"

	"github.com/markus8006/plcfleet/pkg/plugin"
)

// migrations returns the History module's database migrations.
// Reading timestamps are stored as unix milliseconds so range and
// bucket queries stay integer arithmetic.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create readings table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE readings (
						id           INTEGER PRIMARY KEY AUTOINCREMENT,
						register_id  INTEGER NOT NULL REFERENCES register_configs(id) ON DELETE CASCADE,
						timestamp    INTEGER NOT NULL,
						raw_value    REAL    NOT NULL,
						scaled_value REAL    NOT NULL,
						quality      TEXT    NOT NULL DEFAULT 'good'
					)`,
					`CREATE INDEX idx_readings_register_ts ON readings(register_id, timestamp)`,
					`CREATE INDEX idx_readings_ts ON readings(timestamp)`,
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
