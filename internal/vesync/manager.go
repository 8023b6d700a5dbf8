package vesync

import (
	"context"
	"fmt"
	"time"
)

// Default manager intervals. The cloud throttles aggressive polling, so
// list fetches are rate limited and energy history is refreshed rarely.
const (
	defaultUpdateInterval       = 30 * time.Second
	defaultEnergyUpdateInterval = 6 * time.Hour
)

// Manager owns the cloud session and the device collection.
//
// It logs in, fetches the account device list, reconciles the local
// collection against it, and fans out per-device updates. Device
// instances persist across refreshes: a device present in consecutive
// list fetches keeps its identity (and any model-specific state) rather
// than being rebuilt.
//
// Thread Safety:
//   - Manager is NOT safe for concurrent use. The poller serialises all
//     access, including access routed through the API layer.
type Manager struct {
	username string
	password string

	client *Client
	log    Logger

	enabled    bool
	lastUpdate time.Time

	updateInterval       time.Duration
	energyUpdateInterval time.Duration

	devices []Device
}

// ManagerConfig contains Manager construction options.
type ManagerConfig struct {
	// Username and Password are the VeSync account credentials.
	Username string
	Password string

	// Client is the cloud API client. Required.
	Client *Client

	// Logger receives manager diagnostics. Nil means no logging.
	Logger Logger

	// UpdateInterval is the minimum time between device list fetches.
	// Zero selects the 30 second default.
	UpdateInterval time.Duration

	// EnergyUpdateInterval is the minimum time between energy history
	// fetches. Zero selects the 6 hour default.
	EnergyUpdateInterval time.Duration
}

// NewManager creates a manager for one VeSync account.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = defaultUpdateInterval
	}
	if cfg.EnergyUpdateInterval <= 0 {
		cfg.EnergyUpdateInterval = defaultEnergyUpdateInterval
	}
	var log Logger = noopLogger{}
	if cfg.Logger != nil {
		log = cfg.Logger
	}

	return &Manager{
		username:             cfg.Username,
		password:             cfg.Password,
		client:               cfg.Client,
		log:                  log,
		updateInterval:       cfg.UpdateInterval,
		energyUpdateInterval: cfg.EnergyUpdateInterval,
	}
}

// Client returns the cloud API client.
func (m *Manager) Client() *Client { return m.client }

// Enabled reports whether a login has succeeded.
func (m *Manager) Enabled() bool { return m.enabled }

// Login authenticates the account. It must succeed before Update is
// useful. A failed login leaves the manager disabled.
func (m *Manager) Login(ctx context.Context) error {
	if err := m.client.Login(ctx, m.username, m.password); err != nil {
		return err
	}
	m.enabled = true
	return nil
}

// Devices returns the current device collection. The slice is shared;
// callers must not mutate it.
func (m *Manager) Devices() []Device { return m.devices }

// DeviceByKey returns the device with the given key, or nil.
func (m *Manager) DeviceByKey(key DeviceKey) Device {
	for _, d := range m.devices {
		if d.Base().Key() == key {
			return d
		}
	}
	return nil
}

// Outlets returns the devices that support energy metering.
func (m *Manager) Outlets() []Outlet {
	var outlets []Outlet
	for _, d := range m.devices {
		if o, ok := d.(Outlet); ok {
			outlets = append(outlets, o)
		}
	}
	return outlets
}

// Bulbs returns the devices built from the bulb model table.
func (m *Manager) Bulbs() []Device { return m.family(bulbModels) }

// Switches returns the wall switches and dimmers.
func (m *Manager) Switches() []Device { return m.family(switchModels) }

// Fans returns the air purifiers and humidifiers.
func (m *Manager) Fans() []Device { return m.family(fanModels) }

// Kitchen returns the kitchen appliances.
func (m *Manager) Kitchen() []Device { return m.family(kitchenModels) }

// family filters the device collection by model-table membership.
func (m *Manager) family(table map[string]builderFunc) []Device {
	var out []Device
	for _, d := range m.devices {
		if _, ok := table[d.Base().DeviceType]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Update refreshes the device list and every device's details.
//
// Calls within the update interval of the previous refresh are skipped
// silently; the cloud rate limits list fetches. Per-device detail
// failures are logged and do not abort the pass, so one offline device
// cannot starve the rest.
func (m *Manager) Update(ctx context.Context) error {
	if !m.enabled {
		return ErrNotLoggedIn
	}
	if !m.lastUpdate.IsZero() && time.Since(m.lastUpdate) < m.updateInterval {
		m.log.Debug("skipping update inside rate limit window")
		return nil
	}

	// The attempt counts against the interval whatever its outcome, so
	// a failing cloud is not hammered on every tick.
	records, err := m.fetchDeviceList(ctx)
	m.lastUpdate = time.Now()
	if err != nil {
		return err
	}

	m.reconcile(records)

	for _, d := range m.devices {
		if err := d.Update(ctx); err != nil {
			m.log.Warn("device update failed",
				"cid", d.Base().CID,
				"name", d.Base().DeviceName,
				"error", err,
			)
			continue
		}
		m.fetchConfig(ctx, d)
	}
	return nil
}

// configFetcher is implemented by models whose configuration endpoint
// reports firmware versions and protection settings.
type configFetcher interface {
	UpdateConfig(ctx context.Context) error
}

// fetchConfig pulls a device's configuration once, on its first
// successful refresh. Failures are logged and retried on the next pass.
func (m *Manager) fetchConfig(ctx context.Context, d Device) {
	cf, ok := d.(configFetcher)
	if !ok || d.Base().Config != (DeviceConfig{}) {
		return
	}
	if err := cf.UpdateConfig(ctx); err != nil {
		m.log.Warn("device config fetch failed",
			"cid", d.Base().CID,
			"name", d.Base().DeviceName,
			"error", err,
		)
	}
}

// UpdateEnergy refreshes energy history on every metered outlet. Unless
// force is set, per-outlet fetches are throttled by the energy interval.
func (m *Manager) UpdateEnergy(ctx context.Context, force bool) {
	for _, o := range m.Outlets() {
		if err := o.UpdateEnergy(ctx, force); err != nil {
			m.log.Warn("energy update failed",
				"cid", o.Base().CID,
				"name", o.Base().DeviceName,
				"error", err,
			)
		}
	}
}

// fetchDeviceList retrieves the account device list from the cloud.
func (m *Manager) fetchDeviceList(ctx context.Context) ([]DeviceRecord, error) {
	body := m.client.newDeviceListRequest()
	var result struct {
		Total int            `json:"total"`
		List  []DeviceRecord `json:"list"`
	}
	if err := m.client.post(ctx, "/cloud/v1/deviceManaged/devices", nil, body, &result); err != nil {
		return nil, fmt.Errorf("fetching device list: %w", err)
	}
	return result.List, nil
}

// reconcile aligns the device collection with a fresh list fetch.
//
// Records are normalised and validated first; a record with no usable
// identifier or missing required fields is dropped with a warning.
// Devices absent from the new list are removed, surviving devices are
// refreshed in place, new devices are appended in the order the cloud
// listed them, and unrecognised device types are noted at debug level
// and skipped. The pass is linear over both collections.
func (m *Manager) reconcile(records []DeviceRecord) {
	seen := make(map[DeviceKey]DeviceRecord, len(records))
	ordered := make([]DeviceRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Normalize() {
			m.log.Warn("device record has no identifiers, skipping", "name", rec.DeviceName)
			continue
		}
		if !rec.Valid() {
			m.log.Warn("device record missing required fields, skipping",
				"cid", rec.CID, "name", rec.DeviceName)
			continue
		}
		seen[rec.Key()] = rec
		ordered = append(ordered, rec)
	}

	// Drop devices the cloud no longer reports, refresh the rest.
	kept := m.devices[:0]
	for _, d := range m.devices {
		key := d.Base().Key()
		rec, ok := seen[key]
		if !ok {
			m.log.Info("device removed", "cid", key.CID, "name", d.Base().DeviceName)
			continue
		}
		d.Base().applyRecord(rec)
		kept = append(kept, d)
		delete(seen, key)
	}
	m.devices = kept

	// Whatever is left in seen is new. Walk the list order, not the
	// map, so additions land in the order the cloud reported them.
	for _, rec := range ordered {
		if _, ok := seen[rec.Key()]; !ok {
			continue
		}
		dev, ok := buildDevice(rec, m)
		if !ok {
			m.log.Debug("unknown device type, skipping",
				"device_type", rec.DeviceType, "name", rec.DeviceName)
			continue
		}
		m.log.Info("device added",
			"cid", rec.CID,
			"name", rec.DeviceName,
			"device_type", rec.DeviceType,
		)
		m.devices = append(m.devices, dev)
	}
}
