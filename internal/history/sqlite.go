package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
//
// State detail snapshots are stored as JSON in the state_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SyncDevices replaces the devices table with the given rows in a single
// transaction.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rows: Current device list as reported by the cloud
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) SyncDevices(ctx context.Context, rows []DeviceRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning device sync: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	// Nanosecond precision so back-to-back syncs in the same second
	// still distinguish refreshed rows from stale ones.
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, row := range rows {
		if row.CID == "" {
			return fmt.Errorf("device cid is required")
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO devices (cid, sub_device_no, uuid, mac_id, device_type, device_name,
			                      config_module, device_status, connection, device_region, current_firm, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (cid, sub_device_no) DO UPDATE SET
			     uuid = excluded.uuid,
			     mac_id = excluded.mac_id,
			     device_type = excluded.device_type,
			     device_name = excluded.device_name,
			     config_module = excluded.config_module,
			     device_status = excluded.device_status,
			     connection = excluded.connection,
			     device_region = excluded.device_region,
			     current_firm = excluded.current_firm,
			     updated_at = excluded.updated_at`,
			row.CID, row.SubDeviceNo, row.UUID, row.MacID, row.DeviceType, row.DeviceName,
			row.ConfigModule, row.DeviceStatus, row.Connection, row.DeviceRegion, row.CurrentFirm, now,
		)
		if err != nil {
			return fmt.Errorf("upserting device %s: %w", row.CID, err)
		}
	}

	// Delete rows for devices the cloud no longer reports.
	if _, err := tx.ExecContext(ctx, "DELETE FROM devices WHERE updated_at < ?", now); err != nil {
		return fmt.Errorf("deleting stale devices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device sync: %w", err)
	}
	return nil
}

// GetDevices returns the mirrored device list ordered by name.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - []DeviceRow: Mirrored devices (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetDevices(ctx context.Context) ([]DeviceRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cid, sub_device_no, uuid, mac_id, device_type, device_name,
		        config_module, device_status, connection, device_region, current_firm, updated_at
		 FROM devices
		 ORDER BY device_name, cid, sub_device_no`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRow
	for rows.Next() {
		var row DeviceRow
		var updatedAt string
		if err := rows.Scan(&row.CID, &row.SubDeviceNo, &row.UUID, &row.MacID, &row.DeviceType, &row.DeviceName,
			&row.ConfigModule, &row.DeviceStatus, &row.Connection, &row.DeviceRegion, &row.CurrentFirm, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		timestamp, err := parseTimestamp(updatedAt)
		if err != nil {
			return nil, err
		}
		row.UpdatedAt = timestamp
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return out, nil
}

// RecordState appends one state transition entry.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entry: State snapshot to persist; RecordedAt defaults to now
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordState(ctx context.Context, entry StateEntry) error {
	if entry.CID == "" {
		return fmt.Errorf("device cid is required")
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshalling state details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO state_history (cid, sub_device_no, device_status, connection, details, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.CID, entry.SubDeviceNo, entry.DeviceStatus, entry.Connection, string(details),
		entry.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetStateHistory returns recent state entries for a device, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - cid: Cloud device identifier
//   - subDeviceNo: Socket number, zero for single-socket devices
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []StateEntry: History entries ordered by recorded_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetStateHistory(ctx context.Context, cid string, subDeviceNo, limit int) ([]StateEntry, error) {
	if cid == "" {
		return nil, fmt.Errorf("device cid is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cid, sub_device_no, device_status, connection, details, recorded_at
		 FROM state_history
		 WHERE cid = ? AND sub_device_no = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		cid, subDeviceNo, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateEntry, 0, limit)
	for rows.Next() {
		var entry StateEntry
		var details string
		var recordedAt string
		if err := rows.Scan(&entry.ID, &entry.CID, &entry.SubDeviceNo, &entry.DeviceStatus,
			&entry.Connection, &details, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return nil, fmt.Errorf("unmarshalling state details: %w", err)
		}
		timestamp, err := parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entry.RecordedAt = timestamp
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// RecordEnergy appends one energy reading.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entry: Energy reading to persist; RecordedAt defaults to now
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordEnergy(ctx context.Context, entry EnergyEntry) error {
	if entry.CID == "" {
		return fmt.Errorf("device cid is required")
	}
	if entry.Period == "" {
		return fmt.Errorf("energy period is required")
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO energy_history (cid, sub_device_no, period, energy_kwh, cost_per_kwh, max_energy, total_energy, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CID, entry.SubDeviceNo, entry.Period, entry.EnergyKWH, entry.CostPerKWH,
		entry.MaxEnergy, entry.TotalEnergy,
		entry.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting energy history: %w", err)
	}
	return nil
}

// GetEnergyHistory returns recent energy readings for a device and
// period, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - cid: Cloud device identifier
//   - subDeviceNo: Socket number, zero for single-socket devices
//   - period: History window (week, month, year)
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []EnergyEntry: Readings ordered by recorded_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetEnergyHistory(ctx context.Context, cid string, subDeviceNo int, period string, limit int) ([]EnergyEntry, error) {
	if cid == "" {
		return nil, fmt.Errorf("device cid is required")
	}
	if period == "" {
		return nil, fmt.Errorf("energy period is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cid, sub_device_no, period, energy_kwh, cost_per_kwh, max_energy, total_energy, recorded_at
		 FROM energy_history
		 WHERE cid = ? AND sub_device_no = ? AND period = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		cid, subDeviceNo, period, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying energy history: %w", err)
	}
	defer rows.Close()

	entries := make([]EnergyEntry, 0, limit)
	for rows.Next() {
		var entry EnergyEntry
		var recordedAt string
		if err := rows.Scan(&entry.ID, &entry.CID, &entry.SubDeviceNo, &entry.Period,
			&entry.EnergyKWH, &entry.CostPerKWH, &entry.MaxEnergy, &entry.TotalEnergy, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning energy history: %w", err)
		}
		timestamp, err := parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entry.RecordedAt = timestamp
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating energy history: %w", err)
	}
	return entries, nil
}

// Prune deletes state and energy entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted across both tables
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	var total int64
	for _, table := range []string{"state_history", "energy_history"} {
		result, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE recorded_at < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += rowsAffected
	}
	return total, nil
}

// clampLimit applies the default and maximum history limits.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
}
