package vesync

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Target humidity bounds accepted by the cloud.
const (
	minTargetHumidity = 30
	maxTargetHumidity = 80
)

// humidifierConfig describes what a humidifier model supports.
type humidifierConfig struct {
	modes      []string
	mistLevels []int
	warmLevels []int
	features   []string
}

func (c humidifierConfig) hasFeature(name string) bool {
	return slices.Contains(c.features, name)
}

// humidifierModels maps device types to their capabilities.
var humidifierModels = map[string]humidifierConfig{
	"Classic300S": {
		modes:      []string{ModeAuto, ModeSleep, ModeManual},
		mistLevels: []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
		features:   []string{"night_light"},
	},
	"Classic200S": {
		modes:      []string{ModeAuto, ModeManual},
		mistLevels: []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
	},
	"Dual200S": {
		modes:      []string{ModeAuto, ModeManual},
		mistLevels: []int{1, 2},
	},
	"LV600S": {
		modes:      []string{ModeAuto, ModeSleep, ModeManual},
		mistLevels: []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
		warmLevels: []int{0, 1, 2, 3},
		features:   []string{"warm_mist", "night_light"},
	},
	"OASISMIST": {
		modes:      []string{ModeAuto, ModeSleep, ModeManual},
		mistLevels: []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
		warmLevels: []int{0, 1, 2, 3},
		features:   []string{"warm_mist"},
	},
}

// humidifierAliases maps regional model numbers to primary entries.
var humidifierAliases = map[string]string{
	"LUH-A601S-WUSB": "LV600S",
	"LUH-A601S-AUSW": "LV600S",
	"LUH-A602S-WUSR": "LV600S",
	"LUH-A602S-WUS":  "LV600S",
	"LUH-A602S-WEUR": "LV600S",
	"LUH-D301S-WUSR": "Dual200S",
	"LUH-D301S-WJP":  "Dual200S",
	"LUH-D301S-WEU":  "Dual200S",
	"LUH-O451S-WUS":  "OASISMIST",
	"LUH-O451S-WEU":  "OASISMIST",
}

func lookupHumidifier(deviceType string) (humidifierConfig, bool) {
	if primary, ok := humidifierAliases[deviceType]; ok {
		deviceType = primary
	}
	cfg, ok := humidifierModels[deviceType]
	return cfg, ok
}

// Humidifier drives the bypass-based humidifier models. Capabilities
// vary by model; unsupported operations return ErrUnsupported.
type Humidifier struct {
	BaseDevice

	config humidifierConfig

	Humidity             int
	MistLevel            int
	MistVirtualLevel     int
	TargetHumidity       int
	WarmLevel            int
	WarmEnabled          bool
	WaterLacks           bool
	WaterTankLifted      bool
	HighHumidity         bool
	Display              bool
	AutomaticStop        bool
	AutoStopReached      bool
	NightLightBrightness int
}

func newHumidifier(rec DeviceRecord, m *Manager) Device {
	cfg, _ := lookupHumidifier(rec.DeviceType)
	return &Humidifier{
		BaseDevice: newBaseDevice(rec, m),
		config:     cfg,
	}
}

func (h *Humidifier) Base() *BaseDevice { return &h.BaseDevice }

// Modes returns the operating modes this model accepts.
func (h *Humidifier) Modes() []string { return slices.Clone(h.config.modes) }

// MistLevels returns the mist levels this model accepts.
func (h *Humidifier) MistLevels() []int { return slices.Clone(h.config.mistLevels) }

func (h *Humidifier) Update(ctx context.Context) error {
	raw, err := h.client().BypassV2(ctx, &h.BaseDevice, "getHumidifierStatus", nil)
	if err != nil {
		return fmt.Errorf("fetching humidifier status: %w", err)
	}

	var status struct {
		Enabled                  bool   `json:"enabled"`
		Humidity                 int    `json:"humidity"`
		MistLevel                int    `json:"mist_level"`
		MistVirtualLevel         int    `json:"mist_virtual_level"`
		Mode                     string `json:"mode"`
		WaterLacks               bool   `json:"water_lacks"`
		HumidityHigh             bool   `json:"humidity_high"`
		WaterTankLifted          bool   `json:"water_tank_lifted"`
		Display                  bool   `json:"display"`
		AutomaticStopReachTarget bool   `json:"automatic_stop_reach_target"`
		NightLightBrightness     int    `json:"night_light_brightness"`
		WarmLevel                int    `json:"warm_level"`
		WarmEnabled              bool   `json:"warm_enabled"`
		Configuration            struct {
			AutoTargetHumidity int  `json:"auto_target_humidity"`
			Display            bool `json:"display"`
			AutomaticStop      bool `json:"automatic_stop"`
		} `json:"configuration"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("%w: decoding humidifier status: %w", ErrAPIResponse, err)
	}

	if status.Enabled {
		h.DeviceStatus = StatusOn
	} else {
		h.DeviceStatus = StatusOff
	}
	h.Humidity = status.Humidity
	h.MistLevel = status.MistLevel
	h.MistVirtualLevel = status.MistVirtualLevel
	h.Mode = status.Mode
	h.WaterLacks = status.WaterLacks
	h.HighHumidity = status.HumidityHigh
	h.WaterTankLifted = status.WaterTankLifted
	h.Display = status.Display
	h.AutoStopReached = status.AutomaticStopReachTarget
	h.NightLightBrightness = status.NightLightBrightness
	h.WarmLevel = status.WarmLevel
	h.WarmEnabled = status.WarmEnabled
	h.TargetHumidity = status.Configuration.AutoTargetHumidity
	h.AutomaticStop = status.Configuration.AutomaticStop
	return nil
}

func (h *Humidifier) setSwitch(ctx context.Context, on bool) error {
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setSwitch", map[string]any{
		"enabled": on,
		"id":      0,
	})
	if err != nil {
		return fmt.Errorf("switching humidifier: %w", err)
	}
	if on {
		h.DeviceStatus = StatusOn
	} else {
		h.DeviceStatus = StatusOff
	}
	return nil
}

func (h *Humidifier) TurnOn(ctx context.Context) error  { return h.setSwitch(ctx, true) }
func (h *Humidifier) TurnOff(ctx context.Context) error { return h.setSwitch(ctx, false) }

// SetMode selects an operating mode from the model's mode list.
func (h *Humidifier) SetMode(ctx context.Context, mode string) error {
	if !slices.Contains(h.config.modes, mode) {
		return fmt.Errorf("%w: mode %q for %s", ErrOutOfRange, mode, h.DeviceType)
	}
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setHumidityMode", map[string]any{
		"mode": mode,
	})
	if err != nil {
		return fmt.Errorf("setting humidity mode: %w", err)
	}
	h.Mode = mode
	return nil
}

// SetMistLevel sets the mist output level. The device switches to
// manual mode as a side effect.
func (h *Humidifier) SetMistLevel(ctx context.Context, level int) error {
	if !slices.Contains(h.config.mistLevels, level) {
		return fmt.Errorf("%w: mist level %d for %s", ErrOutOfRange, level, h.DeviceType)
	}
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setVirtualLevel", map[string]any{
		"id":    0,
		"level": level,
		"type":  "mist",
	})
	if err != nil {
		return fmt.Errorf("setting mist level: %w", err)
	}
	h.MistVirtualLevel = level
	h.Mode = ModeManual
	return nil
}

// SetTargetHumidity sets the auto mode target, 30-80 percent.
func (h *Humidifier) SetTargetHumidity(ctx context.Context, target int) error {
	if target < minTargetHumidity || target > maxTargetHumidity {
		return fmt.Errorf("%w: target humidity %d", ErrOutOfRange, target)
	}
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setTargetHumidity", map[string]any{
		"target_humidity": target,
	})
	if err != nil {
		return fmt.Errorf("setting target humidity: %w", err)
	}
	h.TargetHumidity = target
	return nil
}

// SetWarmLevel sets the warm mist level on models that heat the mist.
func (h *Humidifier) SetWarmLevel(ctx context.Context, level int) error {
	if !h.config.hasFeature("warm_mist") {
		return fmt.Errorf("%w: warm mist on %s", ErrUnsupported, h.DeviceType)
	}
	if !slices.Contains(h.config.warmLevels, level) {
		return fmt.Errorf("%w: warm level %d for %s", ErrOutOfRange, level, h.DeviceType)
	}
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setLevel", map[string]any{
		"id":    0,
		"level": level,
		"type":  "warm",
	})
	if err != nil {
		return fmt.Errorf("setting warm level: %w", err)
	}
	h.WarmLevel = level
	h.WarmEnabled = level > 0
	return nil
}

// SetAutomaticStop controls whether the device stops once the target
// humidity is reached.
func (h *Humidifier) SetAutomaticStop(ctx context.Context, enabled bool) error {
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setAutomaticStop", map[string]any{
		"enabled": enabled,
	})
	if err != nil {
		return fmt.Errorf("setting automatic stop: %w", err)
	}
	h.AutomaticStop = enabled
	return nil
}

// SetDisplay switches the front display on or off.
func (h *Humidifier) SetDisplay(ctx context.Context, on bool) error {
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setDisplay", map[string]any{
		"state": on,
	})
	if err != nil {
		return fmt.Errorf("setting display: %w", err)
	}
	h.Display = on
	return nil
}

// SetNightLightBrightness sets the night light, 0-100. Zero switches it
// off. Only models with a night light accept this.
func (h *Humidifier) SetNightLightBrightness(ctx context.Context, brightness int) error {
	if !h.config.hasFeature("night_light") {
		return fmt.Errorf("%w: night light on %s", ErrUnsupported, h.DeviceType)
	}
	if brightness < 0 || brightness > 100 {
		return fmt.Errorf("%w: night light brightness %d", ErrOutOfRange, brightness)
	}
	_, err := h.client().BypassV2(ctx, &h.BaseDevice, "setNightLightBrightness", map[string]any{
		"night_light_brightness": brightness,
	})
	if err != nil {
		return fmt.Errorf("setting night light brightness: %w", err)
	}
	h.NightLightBrightness = brightness
	return nil
}

func (h *Humidifier) Details() map[string]any {
	d := h.baseDetails()
	d["humidity"] = h.Humidity
	d["mist_level"] = h.MistVirtualLevel
	d["target_humidity"] = h.TargetHumidity
	d["water_lacks"] = h.WaterLacks
	d["water_tank_lifted"] = h.WaterTankLifted
	d["high_humidity"] = h.HighHumidity
	d["display"] = h.Display
	d["automatic_stop"] = h.AutomaticStop
	if h.config.hasFeature("warm_mist") {
		d["warm_level"] = h.WarmLevel
		d["warm_enabled"] = h.WarmEnabled
	}
	if h.config.hasFeature("night_light") {
		d["night_light_brightness"] = h.NightLightBrightness
	}
	return d
}
