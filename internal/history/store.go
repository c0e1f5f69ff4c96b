package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
)

// Store persists readings.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store on the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendBatch inserts a batch of readings in one transaction, in the
// order given. Pollers rely on this ordering to keep per-register
// timestamps monotonic on disk.
func (s *Store) AppendBatch(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin readings tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (register_id, timestamp, raw_value, scaled_value, quality)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare readings insert: %w", err)
	}
	defer stmt.Close()

	for i := range readings {
		r := &readings[i]
		_, err := stmt.ExecContext(ctx,
			r.RegisterID, r.Timestamp.UnixMilli(), r.RawValue, r.ScaledValue, string(r.Quality))
		if err != nil {
			return fmt.Errorf("insert reading for register %d: %w", r.RegisterID, err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recent reading for a register, or nil when
// none exists.
func (s *Store) Latest(ctx context.Context, registerID int64) (*models.Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, register_id, timestamp, raw_value, scaled_value, quality
		FROM readings WHERE register_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1`, registerID)

	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// LatestPerRegister returns the most recent reading for each of a
// device's registers, newest first. Registers without readings are
// absent from the result.
func (s *Store) LatestPerRegister(ctx context.Context, deviceID int64) ([]models.Reading, error) {
	// Within one register inserts are ordered, so the max row id is the
	// newest reading.
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.register_id, r.timestamp, r.raw_value, r.scaled_value, r.quality
		FROM readings r
		JOIN (
			SELECT register_id, MAX(id) AS max_id FROM readings GROUP BY register_id
		) m ON m.max_id = r.id
		JOIN register_configs c ON c.id = r.register_id
		WHERE c.device_id = ?
		ORDER BY r.timestamp DESC, r.id DESC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query latest per register: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

// Range returns readings for a register within [from, to), oldest first,
// capped at limit rows (0 means no cap).
func (s *Store) Range(ctx context.Context, registerID int64, from, to time.Time, limit int) ([]models.Reading, error) {
	query := `
		SELECT id, register_id, timestamp, raw_value, scaled_value, quality
		FROM readings
		WHERE register_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id`
	args := []any{registerID, from.UnixMilli(), to.UnixMilli()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

// AggregatePoint is one time bucket of aggregated readings.
type AggregatePoint struct {
	Bucket time.Time `json:"bucket"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Avg    float64   `json:"avg"`
	Count  int       `json:"count"`
}

// Aggregate buckets good-quality readings for a register into fixed
// windows of the given size and returns min/max/avg per bucket.
func (s *Store) Aggregate(ctx context.Context, registerID int64, from, to time.Time, bucket time.Duration) ([]AggregatePoint, error) {
	if bucket < time.Second {
		bucket = time.Second
	}
	bucketMs := bucket.Milliseconds()

	rows, err := s.db.QueryContext(ctx, `
		SELECT (timestamp / ?) * ? AS bucket,
			MIN(scaled_value), MAX(scaled_value), AVG(scaled_value), COUNT(*)
		FROM readings
		WHERE register_id = ? AND timestamp >= ? AND timestamp < ? AND quality = 'good'
		GROUP BY bucket ORDER BY bucket`,
		bucketMs, bucketMs, registerID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("aggregate readings: %w", err)
	}
	defer rows.Close()

	var points []AggregatePoint
	for rows.Next() {
		var p AggregatePoint
		var bucketStart int64
		if err := rows.Scan(&bucketStart, &p.Min, &p.Max, &p.Avg, &p.Count); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		p.Bucket = time.UnixMilli(bucketStart).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// PruneBefore deletes readings older than the cutoff and reports how
// many rows were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM readings WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the total number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var r models.Reading
	var ts int64
	var quality string
	if err := row.Scan(&r.ID, &r.RegisterID, &ts, &r.RawValue, &r.ScaledValue, &quality); err != nil {
		return nil, err
	}
	r.Timestamp = time.UnixMilli(ts).UTC()
	r.Quality = models.Quality(quality)
	return &r, nil
}
