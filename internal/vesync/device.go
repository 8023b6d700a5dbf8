package vesync

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
)

// Device status values reported by the cloud.
const (
	StatusOn  = "on"
	StatusOff = "off"

	ConnectionOnline  = "online"
	ConnectionOffline = "offline"
)

// Device is the contract every VeSync device type satisfies.
//
// Concrete types embed BaseDevice for identity and shared state, and add
// model-specific operations (brightness, mist level, fan speed) as plain
// methods discovered by the API layer through type assertion.
type Device interface {
	// Base exposes the shared identity and state fields.
	Base() *BaseDevice

	// Update fetches the latest details from the cloud and refreshes
	// the device state in place.
	Update(ctx context.Context) error

	// TurnOn powers the device (or sub-device) on.
	TurnOn(ctx context.Context) error

	// TurnOff powers the device (or sub-device) off.
	TurnOff(ctx context.Context) error

	// Details returns the model-specific state as a flat map, suitable
	// for publishing and persistence. Keys are stable per model.
	Details() map[string]any
}

// DeviceKey uniquely identifies a device within an account. Sub-devices
// of a multi-outlet share a CID and differ by SubDeviceNo.
type DeviceKey struct {
	CID         string
	SubDeviceNo int
}

// String renders the key for logging and MQTT topics.
func (k DeviceKey) String() string {
	if k.SubDeviceNo == 0 {
		return k.CID
	}
	return k.CID + "-" + strconv.Itoa(k.SubDeviceNo)
}

// flexInt decodes a JSON value that arrives as a number, a numeric
// string, or an empty string. The device list is inconsistent about the
// speed field across firmware versions.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// DeviceRecord is one entry of the cloud device list response.
type DeviceRecord struct {
	CID                string          `json:"cid"`
	UUID               string          `json:"uuid"`
	MacID              string          `json:"macID"`
	SubDeviceNo        int             `json:"subDeviceNo"`
	DeviceType         string          `json:"deviceType"`
	DeviceName         string          `json:"deviceName"`
	ConfigModule       string          `json:"configModule"`
	ConnectionStatus   string          `json:"connectionStatus"`
	ConnectionType     string          `json:"connectionType"`
	DeviceStatus       string          `json:"deviceStatus"`
	Type               string          `json:"type"`
	Mode               string          `json:"mode"`
	Speed              flexInt         `json:"speed"`
	CurrentFirmVersion string          `json:"currentFirmVersion"`
	DeviceRegion       string          `json:"deviceRegion"`
	DeviceImg          string          `json:"deviceImg"`
	Extension          json.RawMessage `json:"extension"`
}

// Valid reports whether the record carries the fields required to build
// a device. Records missing any of these are skipped with a warning.
func (r *DeviceRecord) Valid() bool {
	return r.DeviceType != "" && r.DeviceName != "" && r.DeviceStatus != ""
}

// Normalize fills the CID from fallback identifiers. Some firmware
// versions report an empty cid; the MAC ID and then the UUID stand in.
// Returns false when no identifier is available at all.
func (r *DeviceRecord) Normalize() bool {
	if r.CID == "" {
		switch {
		case r.MacID != "":
			r.CID = r.MacID
		case r.UUID != "":
			r.CID = r.UUID
		default:
			return false
		}
	}
	return true
}

// Key returns the record's device key. Call Normalize first.
func (r *DeviceRecord) Key() DeviceKey {
	return DeviceKey{CID: r.CID, SubDeviceNo: r.SubDeviceNo}
}

// BaseDevice holds the identity and state fields shared by every device
// type. Concrete devices embed it and keep it refreshed from list
// records and detail responses.
type BaseDevice struct {
	CID                string
	UUID               string
	MacID              string
	SubDeviceNo        int
	DeviceType         string
	DeviceName         string
	ConfigModule       string
	ConnectionStatus   string
	DeviceStatus       string
	Mode               string
	Speed              int
	CurrentFirmVersion string
	DeviceRegion       string

	// Config is populated by the model's UpdateConfig method, never by
	// the device list. Zero until the first successful fetch.
	Config DeviceConfig

	manager *Manager
}

// DeviceConfig is the record returned by the per-family configurations
// endpoints. The metering fields are only meaningful for outlets.
type DeviceConfig struct {
	CurrentFirmware string
	LatestFirmware  string
	MaxPower        int
	Threshold       int
	PowerProtection string
	EnergySaving    string
}

// newBaseDevice seeds shared state from a device list record.
func newBaseDevice(rec DeviceRecord, m *Manager) BaseDevice {
	b := BaseDevice{manager: m}
	b.applyRecord(rec)
	return b
}

// applyRecord refreshes shared state from a device list record.
// An offline device always reports status off, whatever the cloud says.
func (b *BaseDevice) applyRecord(rec DeviceRecord) {
	b.CID = rec.CID
	b.UUID = rec.UUID
	b.MacID = rec.MacID
	b.SubDeviceNo = rec.SubDeviceNo
	b.DeviceType = rec.DeviceType
	b.DeviceName = rec.DeviceName
	b.ConfigModule = rec.ConfigModule
	b.ConnectionStatus = rec.ConnectionStatus
	b.DeviceStatus = rec.DeviceStatus
	b.Mode = rec.Mode
	b.Speed = int(rec.Speed)
	b.CurrentFirmVersion = rec.CurrentFirmVersion
	b.DeviceRegion = rec.DeviceRegion

	if b.ConnectionStatus != ConnectionOnline {
		b.DeviceStatus = StatusOff
	}
}

// Key returns the device's unique key.
func (b *BaseDevice) Key() DeviceKey {
	return DeviceKey{CID: b.CID, SubDeviceNo: b.SubDeviceNo}
}

// IsOn reports whether the device is powered on.
func (b *BaseDevice) IsOn() bool {
	return b.DeviceStatus == StatusOn
}

// Online reports whether the cloud considers the device reachable.
func (b *BaseDevice) Online() bool {
	return b.ConnectionStatus == ConnectionOnline
}

// FirmwareUpdate reports whether the cloud advertises a newer firmware
// than the device runs. Always false until a configuration fetch has
// filled both versions.
func (b *BaseDevice) FirmwareUpdate() bool {
	cur, latest := b.Config.CurrentFirmware, b.Config.LatestFirmware
	return cur != "" && latest != "" && cur != latest
}

// client returns the manager's cloud client.
func (b *BaseDevice) client() *Client {
	return b.manager.client
}

// log returns the manager's logger.
func (b *BaseDevice) log() Logger {
	return b.manager.log
}

// baseDetails seeds the Details map with fields every model shares.
func (b *BaseDevice) baseDetails() map[string]any {
	return map[string]any{
		"device_status":     b.DeviceStatus,
		"connection_status": b.ConnectionStatus,
		"mode":              b.Mode,
	}
}

// Toggle flips a device to the requested status using its TurnOn/TurnOff
// methods. Status must be StatusOn or StatusOff.
func Toggle(ctx context.Context, d Device, status string) error {
	if status == StatusOn {
		return d.TurnOn(ctx)
	}
	return d.TurnOff(ctx)
}
