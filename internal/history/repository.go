package history

import (
	"context"
	"time"
)

// DeviceRow mirrors one row of the devices table: the most recent cloud
// view of a device, keyed by (cid, sub_device_no).
type DeviceRow struct {
	// CID is the cloud device identifier.
	CID string `json:"cid"`

	// SubDeviceNo distinguishes sockets that share a CID. Zero for
	// single-socket devices.
	SubDeviceNo int `json:"sub_device_no"`

	// UUID is the cloud device UUID used by the JSON endpoints.
	UUID string `json:"uuid"`

	// MacID is the device MAC address as reported by the cloud.
	MacID string `json:"mac_id"`

	// DeviceType is the model string (ESW03-USA, Core300S, ...).
	DeviceType string `json:"device_type"`

	// DeviceName is the user-assigned name.
	DeviceName string `json:"device_name"`

	// ConfigModule is the cloud configuration module name.
	ConfigModule string `json:"config_module"`

	// DeviceStatus is on or off.
	DeviceStatus string `json:"device_status"`

	// Connection is online or offline.
	Connection string `json:"connection"`

	// DeviceRegion is the cloud region code.
	DeviceRegion string `json:"device_region"`

	// CurrentFirm is the reported firmware version.
	CurrentFirm string `json:"current_firm"`

	// UpdatedAt is when this row was last written (UTC).
	UpdatedAt time.Time `json:"updated_at"`
}

// StateEntry is a single recorded device state transition.
type StateEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// CID is the cloud device identifier.
	CID string `json:"cid"`

	// SubDeviceNo distinguishes sockets that share a CID.
	SubDeviceNo int `json:"sub_device_no"`

	// DeviceStatus is the on/off state at the time of the snapshot.
	DeviceStatus string `json:"device_status"`

	// Connection is the online/offline state at the time of the snapshot.
	Connection string `json:"connection"`

	// Details is the full device detail snapshot.
	Details map[string]any `json:"details"`

	// RecordedAt is the snapshot timestamp (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// EnergyEntry is a single recorded outlet energy reading for one
// history window.
type EnergyEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// CID is the cloud device identifier.
	CID string `json:"cid"`

	// SubDeviceNo distinguishes sockets that share a CID.
	SubDeviceNo int `json:"sub_device_no"`

	// Period is the history window: week, month or year.
	Period string `json:"period"`

	// EnergyKWH is today's consumption in kWh.
	EnergyKWH float64 `json:"energy_kwh"`

	// CostPerKWH is the tariff the cloud used for cost estimates.
	CostPerKWH float64 `json:"cost_per_kwh"`

	// MaxEnergy is the peak reading in the window.
	MaxEnergy float64 `json:"max_energy"`

	// TotalEnergy is the total consumption over the window.
	TotalEnergy float64 `json:"total_energy"`

	// RecordedAt is the reading timestamp (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository persists the device mirror and the state and energy history.
//
// Implementations must be safe for concurrent use and store UTC
// timestamps.
type Repository interface {
	// SyncDevices replaces the devices table with the given rows.
	//
	// Rows are upserted by (cid, sub_device_no); rows not present in
	// the slice are deleted. An empty slice clears the table.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - rows: Current device list as reported by the cloud
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying database error
	SyncDevices(ctx context.Context, rows []DeviceRow) error

	// GetDevices returns the mirrored device list ordered by name.
	GetDevices(ctx context.Context) ([]DeviceRow, error)

	// RecordState appends one state transition entry.
	RecordState(ctx context.Context, entry StateEntry) error

	// GetStateHistory returns recent state entries for a device,
	// newest first. The limit is clamped (default 50, max 200).
	GetStateHistory(ctx context.Context, cid string, subDeviceNo, limit int) ([]StateEntry, error)

	// RecordEnergy appends one energy reading.
	RecordEnergy(ctx context.Context, entry EnergyEntry) error

	// GetEnergyHistory returns recent energy readings for a device and
	// period, newest first. The limit is clamped (default 50, max 200).
	GetEnergyHistory(ctx context.Context, cid string, subDeviceNo int, period string, limit int) ([]EnergyEntry, error)

	// Prune deletes state and energy entries older than the given
	// duration and returns the number of rows removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
