package vesync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnergyPeriod selects an energy history window.
type EnergyPeriod string

// Energy history windows supported by the cloud.
const (
	EnergyWeek  EnergyPeriod = "week"
	EnergyMonth EnergyPeriod = "month"
	EnergyYear  EnergyPeriod = "year"
)

// energyPeriods lists the windows fetched by a full energy update.
var energyPeriods = []EnergyPeriod{EnergyWeek, EnergyMonth, EnergyYear}

// EnergyDetail is one energy history window as reported by the cloud.
type EnergyDetail struct {
	Energy      float64   `json:"energyConsumptionOfToday"`
	CostPerKWH  float64   `json:"costPerKWH"`
	MaxEnergy   float64   `json:"maxEnergy"`
	TotalEnergy float64   `json:"totalEnergy"`
	Data        []float64 `json:"data"`
}

// Outlet is implemented by outlet models that report power metering and
// keep per-window energy history.
type Outlet interface {
	Device

	// UpdateEnergy refreshes the week/month/year history. Unless force
	// is set, fetches are throttled by the manager's energy interval.
	UpdateEnergy(ctx context.Context, force bool) error

	// EnergyHistory returns the most recently fetched history windows.
	EnergyHistory() map[EnergyPeriod]EnergyDetail
}

// outletBase carries the metering state shared by the outlet models.
type outletBase struct {
	BaseDevice

	ActiveTime  int
	Power       float64
	Voltage     float64
	EnergyToday float64

	energy           map[EnergyPeriod]EnergyDetail
	lastEnergyUpdate time.Time
}

func newOutletBase(rec DeviceRecord, m *Manager) outletBase {
	return outletBase{
		BaseDevice: newBaseDevice(rec, m),
		energy:     make(map[EnergyPeriod]EnergyDetail),
	}
}

func (o *outletBase) Base() *BaseDevice { return &o.BaseDevice }

func (o *outletBase) EnergyHistory() map[EnergyPeriod]EnergyDetail {
	out := make(map[EnergyPeriod]EnergyDetail, len(o.energy))
	for k, v := range o.energy {
		out[k] = v
	}
	return out
}

// energyDue reports whether an energy fetch should run now.
func (o *outletBase) energyDue(force bool) bool {
	if force || o.lastEnergyUpdate.IsZero() {
		return true
	}
	return time.Since(o.lastEnergyUpdate) >= o.manager.energyUpdateInterval
}

// configResponse decodes the per-family configurations endpoints. The
// threshold field spelling varies across models, so both are accepted.
type configResponse struct {
	CurrentFirmVersion    string  `json:"currentFirmVersion"`
	LatestFirmVersion     string  `json:"latestFirmVersion"`
	MaxPower              flexInt `json:"maxPower"`
	Threshold             flexInt `json:"threshold"`
	ThreshHold            flexInt `json:"threshHold"`
	PowerProtectionStatus string  `json:"powerProtectionStatus"`
	EnergySavingStatus    string  `json:"energySavingStatus"`
}

func (r configResponse) toConfig() DeviceConfig {
	threshold := int(r.Threshold)
	if r.ThreshHold != 0 {
		threshold = int(r.ThreshHold)
	}
	return DeviceConfig{
		CurrentFirmware: r.CurrentFirmVersion,
		LatestFirmware:  r.LatestFirmVersion,
		MaxPower:        int(r.MaxPower),
		Threshold:       threshold,
		PowerProtection: r.PowerProtectionStatus,
		EnergySaving:    r.EnergySavingStatus,
	}
}

func (o *outletBase) outletDetails() map[string]any {
	d := o.baseDetails()
	d["active_time"] = o.ActiveTime
	d["power"] = o.Power
	d["voltage"] = o.Voltage
	d["energy_today"] = o.EnergyToday
	return d
}

// calculateHex converts the colon-separated hex pair the 7A firmware
// reports into a float. The raw value is the sum of both halves scaled
// by 8192.
func calculateHex(value string) (float64, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: malformed hex pair %q", ErrAPIResponse, value)
	}
	hi, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing hex pair %q: %w", ErrAPIResponse, value, err)
	}
	lo, err := strconv.ParseInt(parts[1], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing hex pair %q: %w", ErrAPIResponse, value, err)
	}
	return float64(hi+lo) / 8192, nil
}

// Outlet7A is the round 7 amp outlet (wifi-switch-1.3). It predates the
// JSON body scheme: details come from a GET and power toggles are bare
// PUTs with the status in the path.
type Outlet7A struct {
	outletBase
}

func newOutlet7A(rec DeviceRecord, m *Manager) Device {
	return &Outlet7A{outletBase: newOutletBase(rec, m)}
}

func (o *Outlet7A) Update(ctx context.Context) error {
	var detail struct {
		DeviceStatus string `json:"deviceStatus"`
		ActiveTime   int    `json:"activeTime"`
		Energy       any    `json:"energy"`
		Power        string `json:"power"`
		Voltage      string `json:"voltage"`
	}
	if err := o.client().get(ctx, "/v1/device/"+o.CID+"/detail", &detail); err != nil {
		return fmt.Errorf("fetching 7a outlet detail: %w", err)
	}

	o.DeviceStatus = detail.DeviceStatus
	o.ActiveTime = detail.ActiveTime
	if e, ok := detail.Energy.(float64); ok {
		o.EnergyToday = e
	}

	// Power and voltage arrive as hex pairs on this model. A parse
	// failure is logged, not fatal; the rest of the detail is kept.
	if detail.Power != "" {
		if p, err := calculateHex(detail.Power); err == nil {
			o.Power = p
		} else {
			o.log().Warn("unparseable power reading", "cid", o.CID, "value", detail.Power)
		}
	}
	if detail.Voltage != "" {
		if v, err := calculateHex(detail.Voltage); err == nil {
			o.Voltage = v
		} else {
			o.log().Warn("unparseable voltage reading", "cid", o.CID, "value", detail.Voltage)
		}
	}
	return nil
}

func (o *Outlet7A) setStatus(ctx context.Context, status string) error {
	path := "/v1/wifi-switch-1.3/" + o.CID + "/status/" + status
	if err := o.client().put(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("setting 7a outlet status: %w", err)
	}
	o.DeviceStatus = status
	return nil
}

func (o *Outlet7A) TurnOn(ctx context.Context) error  { return o.setStatus(ctx, StatusOn) }
func (o *Outlet7A) TurnOff(ctx context.Context) error { return o.setStatus(ctx, StatusOff) }

func (o *Outlet7A) UpdateEnergy(ctx context.Context, force bool) error {
	if !o.energyDue(force) {
		return nil
	}
	for _, period := range energyPeriods {
		var detail EnergyDetail
		if err := o.client().get(ctx, "/v1/device/"+o.CID+"/energy/"+string(period), &detail); err != nil {
			return fmt.Errorf("fetching 7a outlet %s energy: %w", period, err)
		}
		o.energy[period] = detail
	}
	o.lastEnergyUpdate = time.Now()
	return nil
}

// UpdateConfig refreshes firmware and protection settings. This model
// uses a plain GET keyed by CID, unlike the JSON-body outlets.
func (o *Outlet7A) UpdateConfig(ctx context.Context) error {
	var resp configResponse
	if err := o.client().get(ctx, "/v1/device/"+o.CID+"/configurations", &resp); err != nil {
		return fmt.Errorf("fetching 7a outlet configuration: %w", err)
	}
	o.Config = resp.toConfig()
	return nil
}

func (o *Outlet7A) Details() map[string]any { return o.outletDetails() }

// jsonOutlet implements the JSON-body outlet endpoints shared by the
// 10A, 15A and outdoor models. Each model supplies its path prefix.
type jsonOutlet struct {
	outletBase
	prefix string
}

func (o *jsonOutlet) fetchEnergy(ctx context.Context, force bool) error {
	if !o.energyDue(force) {
		return nil
	}
	for _, period := range energyPeriods {
		body := o.client().newEnergyRequest(o.UUID, "energy"+string(period))
		var detail EnergyDetail
		if err := o.client().post(ctx, o.prefix+"/energy"+string(period), o.client().authHeaders(), body, &detail); err != nil {
			return fmt.Errorf("fetching %s energy: %w", period, err)
		}
		o.energy[period] = detail
	}
	o.lastEnergyUpdate = time.Now()
	return nil
}

// UpdateConfig refreshes firmware and protection settings.
func (o *jsonOutlet) UpdateConfig(ctx context.Context) error {
	body := o.client().newDetailRequest(o.UUID)
	body.Method = "configurations"
	var resp configResponse
	if err := o.client().post(ctx, o.prefix+"/configurations", o.client().authHeaders(), body, &resp); err != nil {
		return fmt.Errorf("fetching outlet configuration: %w", err)
	}
	o.Config = resp.toConfig()
	return nil
}

// Outlet10A is the rectangular 10 amp outlet (ESW03-USA, ESW01-EU).
type Outlet10A struct {
	jsonOutlet
}

func newOutlet10A(rec DeviceRecord, m *Manager) Device {
	return &Outlet10A{jsonOutlet{outletBase: newOutletBase(rec, m), prefix: "/10a/v1/device"}}
}

func (o *Outlet10A) Update(ctx context.Context) error {
	body := o.client().newDetailRequest(o.UUID)
	var detail struct {
		DeviceStatus     string  `json:"deviceStatus"`
		ConnectionStatus string  `json:"connectionStatus"`
		ActiveTime       int     `json:"activeTime"`
		Energy           float64 `json:"energy"`
		Power            float64 `json:"power"`
		Voltage          float64 `json:"voltage"`
	}
	if err := o.client().post(ctx, o.prefix+"/devicedetail", o.client().authHeaders(), body, &detail); err != nil {
		return fmt.Errorf("fetching 10a outlet detail: %w", err)
	}

	o.DeviceStatus = detail.DeviceStatus
	if detail.ConnectionStatus != "" {
		o.ConnectionStatus = detail.ConnectionStatus
	}
	o.ActiveTime = detail.ActiveTime
	o.EnergyToday = detail.Energy
	o.Power = detail.Power
	o.Voltage = detail.Voltage
	return nil
}

func (o *Outlet10A) setStatus(ctx context.Context, status string) error {
	body := o.client().newStatusRequest(o.UUID, status)
	if err := o.client().put(ctx, o.prefix+"/devicestatus", body, nil); err != nil {
		return fmt.Errorf("setting 10a outlet status: %w", err)
	}
	o.DeviceStatus = status
	return nil
}

func (o *Outlet10A) TurnOn(ctx context.Context) error  { return o.setStatus(ctx, StatusOn) }
func (o *Outlet10A) TurnOff(ctx context.Context) error { return o.setStatus(ctx, StatusOff) }

func (o *Outlet10A) UpdateEnergy(ctx context.Context, force bool) error {
	return o.fetchEnergy(ctx, force)
}

func (o *Outlet10A) Details() map[string]any { return o.outletDetails() }

// Outlet15A is the 15 amp outlet with night light (ESW15-USA).
type Outlet15A struct {
	jsonOutlet

	NightlightStatus     string
	NightlightBrightness int
	NightlightAutomode   string
}

func newOutlet15A(rec DeviceRecord, m *Manager) Device {
	return &Outlet15A{jsonOutlet: jsonOutlet{outletBase: newOutletBase(rec, m), prefix: "/15a/v1/device"}}
}

func (o *Outlet15A) Update(ctx context.Context) error {
	body := o.client().newDetailRequest(o.UUID)
	var detail struct {
		DeviceStatus         string  `json:"deviceStatus"`
		ConnectionStatus     string  `json:"connectionStatus"`
		ActiveTime           int     `json:"activeTime"`
		Energy               float64 `json:"energy"`
		Power                float64 `json:"power"`
		Voltage              float64 `json:"voltage"`
		NightLightStatus     string  `json:"nightLightStatus"`
		NightLightBrightness int     `json:"nightLightBrightness"`
		NightLightAutomode   string  `json:"nightLightAutomode"`
	}
	if err := o.client().post(ctx, o.prefix+"/devicedetail", o.client().authHeaders(), body, &detail); err != nil {
		return fmt.Errorf("fetching 15a outlet detail: %w", err)
	}

	o.DeviceStatus = detail.DeviceStatus
	if detail.ConnectionStatus != "" {
		o.ConnectionStatus = detail.ConnectionStatus
	}
	o.ActiveTime = detail.ActiveTime
	o.EnergyToday = detail.Energy
	o.Power = detail.Power
	o.Voltage = detail.Voltage
	o.NightlightStatus = detail.NightLightStatus
	o.NightlightBrightness = detail.NightLightBrightness
	o.NightlightAutomode = detail.NightLightAutomode
	return nil
}

func (o *Outlet15A) setStatus(ctx context.Context, status string) error {
	body := o.client().newStatusRequest(o.UUID, status)
	if err := o.client().put(ctx, o.prefix+"/devicestatus", body, nil); err != nil {
		return fmt.Errorf("setting 15a outlet status: %w", err)
	}
	o.DeviceStatus = status
	return nil
}

func (o *Outlet15A) TurnOn(ctx context.Context) error  { return o.setStatus(ctx, StatusOn) }
func (o *Outlet15A) TurnOff(ctx context.Context) error { return o.setStatus(ctx, StatusOff) }

// SetNightlightMode sets the night light to auto, on or off.
func (o *Outlet15A) SetNightlightMode(ctx context.Context, mode string) error {
	switch mode {
	case "auto", StatusOn, StatusOff:
	default:
		return fmt.Errorf("%w: nightlight mode %q", ErrOutOfRange, mode)
	}
	body := statusRequest{
		AccountID: o.client().AccountID(),
		Token:     o.client().Token(),
		TimeZone:  o.client().TimeZone(),
		UUID:      o.UUID,
		Mode:      mode,
	}
	if err := o.client().put(ctx, o.prefix+"/nightlightstatus", body, nil); err != nil {
		return fmt.Errorf("setting 15a nightlight: %w", err)
	}
	o.NightlightAutomode = mode
	return nil
}

func (o *Outlet15A) UpdateEnergy(ctx context.Context, force bool) error {
	return o.fetchEnergy(ctx, force)
}

func (o *Outlet15A) Details() map[string]any {
	d := o.outletDetails()
	d["nightlight_status"] = o.NightlightStatus
	d["nightlight_brightness"] = o.NightlightBrightness
	d["nightlight_automode"] = o.NightlightAutomode
	return d
}

// OutdoorPlug is the dual-socket outdoor outlet (ESO15-TB). Each socket
// appears as its own device sharing a CID, distinguished by SubDeviceNo.
type OutdoorPlug struct {
	jsonOutlet
}

func newOutdoorPlug(rec DeviceRecord, m *Manager) Device {
	return &OutdoorPlug{jsonOutlet{outletBase: newOutletBase(rec, m), prefix: "/outdoorsocket15a/v1/device"}}
}

func (o *OutdoorPlug) Update(ctx context.Context) error {
	body := o.client().newDetailRequest(o.UUID)
	var detail struct {
		ConnectionStatus string  `json:"connectionStatus"`
		ActiveTime       int     `json:"activeTime"`
		Energy           float64 `json:"energy"`
		Power            float64 `json:"power"`
		Voltage          float64 `json:"voltage"`
		SubDevices       []struct {
			SubDeviceNo     int    `json:"subDeviceNo"`
			SubDeviceStatus string `json:"subDeviceStatus"`
		} `json:"subDevices"`
	}
	if err := o.client().post(ctx, o.prefix+"/devicedetail", o.client().authHeaders(), body, &detail); err != nil {
		return fmt.Errorf("fetching outdoor plug detail: %w", err)
	}

	if detail.ConnectionStatus != "" {
		o.ConnectionStatus = detail.ConnectionStatus
	}
	o.ActiveTime = detail.ActiveTime
	o.EnergyToday = detail.Energy
	o.Power = detail.Power
	o.Voltage = detail.Voltage

	// The detail response covers both sockets; pick out this one.
	for _, sub := range detail.SubDevices {
		if sub.SubDeviceNo == o.SubDeviceNo {
			o.DeviceStatus = sub.SubDeviceStatus
		}
	}
	return nil
}

func (o *OutdoorPlug) setStatus(ctx context.Context, status string) error {
	body := statusRequest{
		AccountID: o.client().AccountID(),
		Token:     o.client().Token(),
		TimeZone:  o.client().TimeZone(),
		UUID:      o.UUID,
		Status:    status,
		SwitchNo:  strconv.Itoa(o.SubDeviceNo),
	}
	if err := o.client().put(ctx, o.prefix+"/devicestatus", body, nil); err != nil {
		return fmt.Errorf("setting outdoor plug status: %w", err)
	}
	o.DeviceStatus = status
	return nil
}

func (o *OutdoorPlug) TurnOn(ctx context.Context) error  { return o.setStatus(ctx, StatusOn) }
func (o *OutdoorPlug) TurnOff(ctx context.Context) error { return o.setStatus(ctx, StatusOff) }

func (o *OutdoorPlug) UpdateEnergy(ctx context.Context, force bool) error {
	return o.fetchEnergy(ctx, force)
}

func (o *OutdoorPlug) Details() map[string]any { return o.outletDetails() }

// OutletBSDGO1 is the smart plug sold under the BSDOG01 model, driven
// entirely through the v2 bypass endpoint. It has no power metering.
type OutletBSDGO1 struct {
	BaseDevice
}

func newOutletBSDGO1(rec DeviceRecord, m *Manager) Device {
	return &OutletBSDGO1{BaseDevice: newBaseDevice(rec, m)}
}

func (o *OutletBSDGO1) Base() *BaseDevice { return &o.BaseDevice }

func (o *OutletBSDGO1) Update(ctx context.Context) error {
	raw, err := o.client().BypassV2(ctx, &o.BaseDevice, "getProperty", map[string]any{
		"properties": []string{"powerSwitch_1"},
	})
	if err != nil {
		return fmt.Errorf("fetching plug state: %w", err)
	}

	var result struct {
		PowerSwitch int `json:"powerSwitch_1"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("%w: decoding plug state: %w", ErrAPIResponse, err)
	}

	if result.PowerSwitch == 1 {
		o.DeviceStatus = StatusOn
	} else {
		o.DeviceStatus = StatusOff
	}
	return nil
}

func (o *OutletBSDGO1) setStatus(ctx context.Context, on bool) error {
	value := 0
	if on {
		value = 1
	}
	_, err := o.client().BypassV2(ctx, &o.BaseDevice, "setProperty", map[string]any{
		"powerSwitch_1": value,
	})
	if err != nil {
		return fmt.Errorf("setting plug state: %w", err)
	}
	if on {
		o.DeviceStatus = StatusOn
	} else {
		o.DeviceStatus = StatusOff
	}
	return nil
}

func (o *OutletBSDGO1) TurnOn(ctx context.Context) error  { return o.setStatus(ctx, true) }
func (o *OutletBSDGO1) TurnOff(ctx context.Context) error { return o.setStatus(ctx, false) }

func (o *OutletBSDGO1) Details() map[string]any { return o.baseDetails() }
