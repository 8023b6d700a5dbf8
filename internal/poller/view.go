package poller

import (
	"time"

	"github.com/vesynchub/vesync-core/internal/vesync"
)

// DeviceView is a copy of one device's identity and state, taken under
// the poller lock. Views are safe to hold, serialise, and publish after
// the lock is released.
type DeviceView struct {
	Key                string         `json:"key"`
	CID                string         `json:"cid"`
	SubDeviceNo        int            `json:"sub_device_no"`
	UUID               string         `json:"uuid,omitempty"`
	MacID              string         `json:"mac_id,omitempty"`
	DeviceType         string         `json:"device_type"`
	DeviceName         string         `json:"name"`
	ConfigModule       string         `json:"config_module,omitempty"`
	DeviceStatus       string         `json:"status"`
	ConnectionStatus   string         `json:"connection"`
	Mode               string         `json:"mode,omitempty"`
	CurrentFirmVersion string         `json:"firmware,omitempty"`
	LatestFirmVersion  string         `json:"firmware_latest,omitempty"`
	FirmwareUpdate     bool           `json:"firmware_update"`
	DeviceRegion       string         `json:"region,omitempty"`
	Details            map[string]any `json:"details"`
}

// EnergyView is one outlet's energy history window, copied under the
// poller lock.
type EnergyView struct {
	Key         string  `json:"key"`
	CID         string  `json:"cid"`
	SubDeviceNo int     `json:"sub_device_no"`
	Period      string  `json:"period"`
	Energy      float64 `json:"energy_kwh"`
	CostPerKWH  float64 `json:"cost_per_kwh"`
	MaxEnergy   float64 `json:"max_energy"`
	TotalEnergy float64 `json:"total_energy"`
}

// snapshot is everything one polling cycle captured. It is assembled
// under the poller lock and consumed outside it.
type snapshot struct {
	taken   time.Time
	devices []DeviceView
	energy  []EnergyView
}

// viewOf copies a device's identity and state into a DeviceView.
func viewOf(d vesync.Device) DeviceView {
	b := d.Base()
	firmware := b.CurrentFirmVersion
	if b.Config.CurrentFirmware != "" {
		firmware = b.Config.CurrentFirmware
	}
	return DeviceView{
		Key:                b.Key().String(),
		CID:                b.CID,
		SubDeviceNo:        b.SubDeviceNo,
		UUID:               b.UUID,
		MacID:              b.MacID,
		DeviceType:         b.DeviceType,
		DeviceName:         b.DeviceName,
		ConfigModule:       b.ConfigModule,
		DeviceStatus:       b.DeviceStatus,
		ConnectionStatus:   b.ConnectionStatus,
		Mode:               b.Mode,
		CurrentFirmVersion: firmware,
		LatestFirmVersion:  b.Config.LatestFirmware,
		FirmwareUpdate:     b.FirmwareUpdate(),
		DeviceRegion:       b.DeviceRegion,
		Details:            d.Details(),
	}
}

// snapshotLocked captures the full device collection. Callers must hold
// the poller lock.
func (p *Poller) snapshotLocked() snapshot {
	devices := p.manager.Devices()
	snap := snapshot{
		taken:   time.Now().UTC(),
		devices: make([]DeviceView, 0, len(devices)),
	}

	for _, d := range devices {
		snap.devices = append(snap.devices, viewOf(d))
	}

	for _, o := range p.manager.Outlets() {
		b := o.Base()
		for period, detail := range o.EnergyHistory() {
			snap.energy = append(snap.energy, EnergyView{
				Key:         b.Key().String(),
				CID:         b.CID,
				SubDeviceNo: b.SubDeviceNo,
				Period:      string(period),
				Energy:      detail.Energy,
				CostPerKWH:  detail.CostPerKWH,
				MaxEnergy:   detail.MaxEnergy,
				TotalEnergy: detail.TotalEnergy,
			})
		}
	}

	return snap
}
