package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
)

// ErrNotFound is returned when a device or register config does not exist.
var ErrNotFound = errors.New("not found")

// UpsertOutcome reports what an upsert from discovery did to the inventory.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
	OutcomeSkipped UpsertOutcome = "skipped"
)

// Store persists devices and register configs.
type Store struct {
	db *sql.DB

	defaultIntervalMs int
	defaultTimeoutMs  int
}

// NewStore creates an inventory store on the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, defaultIntervalMs: 1000, defaultTimeoutMs: 3000}
}

// SetPollDefaults overrides the interval and timeout applied to devices
// created without explicit values. Non-positive arguments are ignored.
func (s *Store) SetPollDefaults(intervalMs, timeoutMs int) {
	if intervalMs > 0 {
		s.defaultIntervalMs = intervalMs
	}
	if timeoutMs > 0 {
		s.defaultTimeoutMs = timeoutMs
	}
}

const deviceColumns = `id, name, ip, mac, subnet, ports, protocol, unit_id,
	polling_interval_ms, timeout_ms, active, online, last_connection, manual, info, created_at`

// Create inserts a new device created by an operator. The device is
// validated and marked manual.
func (s *Store) Create(ctx context.Context, d *models.Device) error {
	s.applyDeviceDefaults(d)
	d.Manual = true
	if err := d.Validate(); err != nil {
		return err
	}

	ports, info, err := marshalDeviceJSON(d)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (name, ip, mac, subnet, ports, protocol, unit_id,
			polling_interval_ms, timeout_ms, active, online, manual, info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.IP, d.MAC, d.Subnet, ports, string(d.Protocol), d.UnitID,
		d.PollingIntervalMs, d.TimeoutMs, d.Active, d.Online, d.Manual, info,
	)
	if err != nil {
		return fmt.Errorf("insert device %s: %w", d.IP, err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("device id: %w", err)
	}
	return nil
}

// GetByID returns the device with the given id, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	return scanDevice(row)
}

// GetByIP returns the device with the given ip, or ErrNotFound.
// The ip column is uniquely indexed.
func (s *Store) GetByIP(ctx context.Context, ip string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE ip = ?`, ip)
	return scanDevice(row)
}

// List returns all devices ordered by ip.
func (s *Store) List(ctx context.Context) ([]models.Device, error) {
	return s.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY ip`)
}

// ListActive returns all devices with active=true.
func (s *Store) ListActive(ctx context.Context) ([]models.Device, error) {
	return s.queryDevices(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE active = 1 ORDER BY ip`)
}

// ListDiscovered returns all devices created by discovery (manual=false).
func (s *Store) ListDiscovered(ctx context.Context) ([]models.Device, error) {
	return s.queryDevices(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE manual = 0 ORDER BY ip`)
}

// Update replaces the operator-editable fields of a device.
func (s *Store) Update(ctx context.Context, d *models.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	ports, info, err := marshalDeviceJSON(d)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE devices SET name = ?, mac = ?, subnet = ?, ports = ?, protocol = ?,
			unit_id = ?, polling_interval_ms = ?, timeout_ms = ?, active = ?,
			manual = ?, info = ?
		WHERE id = ?`,
		d.Name, d.MAC, d.Subnet, ports, string(d.Protocol),
		d.UnitID, d.PollingIntervalMs, d.TimeoutMs, d.Active,
		d.Manual, info, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update device %d: %w", d.ID, err)
	}
	return requireRow(res)
}

// Delete removes a device. Register configs cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device %d: %w", id, err)
	}
	return requireRow(res)
}

// SetOnline flips the online flag. Used by pollers on state transitions.
func (s *Store) SetOnline(ctx context.Context, id int64, online bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET online = ? WHERE id = ?`, online, id)
	if err != nil {
		return fmt.Errorf("set online %d: %w", id, err)
	}
	return requireRow(res)
}

// SetLastConnection records the most recent successful connect.
func (s *Store) SetLastConnection(ctx context.Context, id int64, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET last_connection = ? WHERE id = ?`, ts.UTC(), id)
	if err != nil {
		return fmt.Errorf("set last connection %d: %w", id, err)
	}
	return requireRow(res)
}

// UpsertDiscovered reconciles a discovered device into the inventory.
//
// A new ip inserts the full record. An existing manual device is left
// alone (only online/last_connection move) unless overwrite is set.
// An existing discovered device gets its network-observed fields
// refreshed while operator-owned fields (name, active, polling,
// timeout, unit id) are preserved.
func (s *Store) UpsertDiscovered(ctx context.Context, d *models.Device, overwrite bool) (UpsertOutcome, error) {
	s.applyDeviceDefaults(d)
	if err := d.Validate(); err != nil {
		return "", err
	}

	existing, err := s.GetByIP(ctx, d.IP)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	now := time.Now().UTC()

	if existing == nil {
		ports, info, err := marshalDeviceJSON(d)
		if err != nil {
			return "", err
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO devices (name, ip, mac, subnet, ports, protocol, unit_id,
				polling_interval_ms, timeout_ms, active, online, last_connection, manual, info)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			d.Name, d.IP, d.MAC, d.Subnet, ports, string(d.Protocol), d.UnitID,
			d.PollingIntervalMs, d.TimeoutMs, d.Active, d.Online, now, info,
		)
		if err != nil {
			return "", fmt.Errorf("insert discovered device %s: %w", d.IP, err)
		}
		d.ID, _ = res.LastInsertId()
		return OutcomeCreated, nil
	}

	d.ID = existing.ID

	if existing.Manual && !overwrite {
		// Manual devices are protected from discovery. Only liveness moves.
		_, err := s.db.ExecContext(ctx,
			`UPDATE devices SET online = ?, last_connection = ? WHERE id = ?`,
			d.Online, now, existing.ID)
		if err != nil {
			return "", fmt.Errorf("touch manual device %s: %w", d.IP, err)
		}
		return OutcomeSkipped, nil
	}

	ports, err := json.Marshal(d.Ports)
	if err != nil {
		return "", fmt.Errorf("marshal ports: %w", err)
	}

	if overwrite {
		info, err := json.Marshal(nonNilInfo(d.Info))
		if err != nil {
			return "", fmt.Errorf("marshal info: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE devices SET name = ?, mac = ?, subnet = ?, ports = ?, protocol = ?,
				unit_id = ?, polling_interval_ms = ?, timeout_ms = ?, active = ?,
				online = ?, last_connection = ?, manual = 0, info = ?
			WHERE id = ?`,
			d.Name, d.MAC, d.Subnet, string(ports), string(d.Protocol),
			d.UnitID, d.PollingIntervalMs, d.TimeoutMs, d.Active,
			d.Online, now, string(info), existing.ID,
		)
		if err != nil {
			return "", fmt.Errorf("overwrite device %s: %w", d.IP, err)
		}
		return OutcomeUpdated, nil
	}

	// Refresh network-observed fields, preserve operator-owned ones.
	_, err = s.db.ExecContext(ctx, `
		UPDATE devices SET mac = ?, subnet = ?, ports = ?, protocol = ?,
			online = ?, last_connection = ?
		WHERE id = ?`,
		d.MAC, d.Subnet, string(ports), string(d.Protocol),
		d.Online, now, existing.ID,
	)
	if err != nil {
		return "", fmt.Errorf("refresh device %s: %w", d.IP, err)
	}
	return OutcomeUpdated, nil
}

// CreateRegisterConfig adds a register config after validating it.
func (s *Store) CreateRegisterConfig(ctx context.Context, c *models.RegisterConfig) error {
	if c.ScaleFactor == 0 {
		c.ScaleFactor = 1.0
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := s.GetByID(ctx, c.DeviceID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO register_configs (device_id, name, address, count, register_type,
			data_type, scale_factor, offset, unit, interval_ms, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.DeviceID, c.Name, c.Address, c.Count, string(c.RegisterType),
		string(c.DataType), c.ScaleFactor, c.Offset, c.Unit, c.IntervalMs, c.Active,
	)
	if err != nil {
		return fmt.Errorf("insert register config %s: %w", c.Name, err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("register config id: %w", err)
	}
	return nil
}

// UpdateRegisterConfig replaces an existing register config.
func (s *Store) UpdateRegisterConfig(ctx context.Context, c *models.RegisterConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE register_configs SET name = ?, address = ?, count = ?, register_type = ?,
			data_type = ?, scale_factor = ?, offset = ?, unit = ?, interval_ms = ?, active = ?
		WHERE id = ?`,
		c.Name, c.Address, c.Count, string(c.RegisterType),
		string(c.DataType), c.ScaleFactor, c.Offset, c.Unit, c.IntervalMs, c.Active, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update register config %d: %w", c.ID, err)
	}
	return requireRow(res)
}

// DeleteRegisterConfig removes a register config.
func (s *Store) DeleteRegisterConfig(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM register_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete register config %d: %w", id, err)
	}
	return requireRow(res)
}

// ListRegisterConfigs returns all register configs for a device.
func (s *Store) ListRegisterConfigs(ctx context.Context, deviceID int64) ([]models.RegisterConfig, error) {
	return s.queryRegisterConfigs(ctx, `
		SELECT id, device_id, name, address, count, register_type, data_type,
			scale_factor, offset, unit, interval_ms, active
		FROM register_configs WHERE device_id = ? ORDER BY address`, deviceID)
}

// ListActiveRegisterConfigs returns the active register configs for a
// device, the set the poller reads.
func (s *Store) ListActiveRegisterConfigs(ctx context.Context, deviceID int64) ([]models.RegisterConfig, error) {
	return s.queryRegisterConfigs(ctx, `
		SELECT id, device_id, name, address, count, register_type, data_type,
			scale_factor, offset, unit, interval_ms, active
		FROM register_configs WHERE device_id = ? AND active = 1 ORDER BY address`, deviceID)
}

func (s *Store) queryDevices(ctx context.Context, query string, args ...any) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func (s *Store) queryRegisterConfigs(ctx context.Context, query string, args ...any) ([]models.RegisterConfig, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query register configs: %w", err)
	}
	defer rows.Close()

	var configs []models.RegisterConfig
	for rows.Next() {
		var c models.RegisterConfig
		var rt, dt string
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Name, &c.Address, &c.Count,
			&rt, &dt, &c.ScaleFactor, &c.Offset, &c.Unit, &c.IntervalMs, &c.Active); err != nil {
			return nil, fmt.Errorf("scan register config: %w", err)
		}
		c.RegisterType = models.RegisterType(rt)
		c.DataType = models.DataType(dt)
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row *sql.Row) (*models.Device, error) {
	d, err := scanDeviceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func scanDeviceRow(row rowScanner) (*models.Device, error) {
	var d models.Device
	var ports, info, protocol string
	var lastConn sql.NullTime
	err := row.Scan(&d.ID, &d.Name, &d.IP, &d.MAC, &d.Subnet, &ports, &protocol,
		&d.UnitID, &d.PollingIntervalMs, &d.TimeoutMs, &d.Active, &d.Online,
		&lastConn, &d.Manual, &info, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Protocol = models.Protocol(protocol)
	if lastConn.Valid {
		t := lastConn.Time
		d.LastConnection = &t
	}
	if err := json.Unmarshal([]byte(ports), &d.Ports); err != nil {
		return nil, fmt.Errorf("unmarshal ports for %s: %w", d.IP, err)
	}
	if err := json.Unmarshal([]byte(info), &d.Info); err != nil {
		return nil, fmt.Errorf("unmarshal info for %s: %w", d.IP, err)
	}
	return &d, nil
}

func marshalDeviceJSON(d *models.Device) (ports, info string, err error) {
	if d.Ports == nil {
		d.Ports = []int{}
	}
	p, err := json.Marshal(d.Ports)
	if err != nil {
		return "", "", fmt.Errorf("marshal ports: %w", err)
	}
	i, err := json.Marshal(nonNilInfo(d.Info))
	if err != nil {
		return "", "", fmt.Errorf("marshal info: %w", err)
	}
	return string(p), string(i), nil
}

func nonNilInfo(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func (s *Store) applyDeviceDefaults(d *models.Device) {
	if d.Protocol == "" {
		d.Protocol = models.ProtocolModbusTCP
	}
	if d.UnitID == 0 {
		d.UnitID = 1
	}
	if d.PollingIntervalMs == 0 {
		d.PollingIntervalMs = s.defaultIntervalMs
	}
	if d.TimeoutMs == 0 {
		d.TimeoutMs = s.defaultTimeoutMs
	}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
