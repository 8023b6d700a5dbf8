package vesync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const bulbPrefix = "/SmartBulb/v1/device"

// BulbESL100 is the dimmable white bulb (ESL100).
type BulbESL100 struct {
	BaseDevice

	Brightness int
}

func newBulbESL100(rec DeviceRecord, m *Manager) Device {
	return &BulbESL100{BaseDevice: newBaseDevice(rec, m)}
}

func (b *BulbESL100) Base() *BaseDevice { return &b.BaseDevice }

func (b *BulbESL100) Update(ctx context.Context) error {
	body := b.client().newDetailRequest(b.UUID)
	var detail struct {
		DeviceStatus     string  `json:"deviceStatus"`
		ConnectionStatus string  `json:"connectionStatus"`
		BrightNess       flexInt `json:"brightNess"`
	}
	if err := b.client().post(ctx, bulbPrefix+"/devicedetail", b.client().authHeaders(), body, &detail); err != nil {
		return fmt.Errorf("fetching bulb detail: %w", err)
	}

	b.DeviceStatus = detail.DeviceStatus
	if detail.ConnectionStatus != "" {
		b.ConnectionStatus = detail.ConnectionStatus
	}
	b.Brightness = int(detail.BrightNess)
	return nil
}

func (b *BulbESL100) setStatus(ctx context.Context, status string) error {
	body := b.client().newStatusRequest(b.UUID, status)
	if err := b.client().put(ctx, bulbPrefix+"/devicestatus", body, nil); err != nil {
		return fmt.Errorf("setting bulb status: %w", err)
	}
	b.DeviceStatus = status
	return nil
}

func (b *BulbESL100) TurnOn(ctx context.Context) error  { return b.setStatus(ctx, StatusOn) }
func (b *BulbESL100) TurnOff(ctx context.Context) error { return b.setStatus(ctx, StatusOff) }

// bulbBrightnessRequest is the body for the bulb brightness endpoint.
// The field spelling matches the firmware, brightNess included.
type bulbBrightnessRequest struct {
	authRequest
	UUID       string `json:"uuid"`
	Status     string `json:"status"`
	BrightNess string `json:"brightNess"`
}

// SetBrightness dims the bulb. Levels range 1-100.
func (b *BulbESL100) SetBrightness(ctx context.Context, level int) error {
	if level < 1 || level > 100 {
		return fmt.Errorf("%w: brightness %d", ErrOutOfRange, level)
	}
	body := bulbBrightnessRequest{
		authRequest: b.client().newAuthRequest(),
		UUID:        b.UUID,
		Status:      StatusOn,
		BrightNess:  strconv.Itoa(level),
	}
	if err := b.client().put(ctx, bulbPrefix+"/updateBrightness", body, nil); err != nil {
		return fmt.Errorf("setting bulb brightness: %w", err)
	}
	b.Brightness = level
	b.DeviceStatus = StatusOn
	return nil
}

func (b *BulbESL100) Details() map[string]any {
	d := b.baseDetails()
	d["brightness"] = b.Brightness
	return d
}

// BulbESL100CW is the tunable white bulb (ESL100CW), driven through the
// v1 bypass endpoint with jsonCmd payloads.
type BulbESL100CW struct {
	BaseDevice

	Brightness int
	ColorTemp  int // percent, 0 warm to 100 cold
}

func newBulbESL100CW(rec DeviceRecord, m *Manager) Device {
	return &BulbESL100CW{BaseDevice: newBaseDevice(rec, m)}
}

func (b *BulbESL100CW) Base() *BaseDevice { return &b.BaseDevice }

func (b *BulbESL100CW) Update(ctx context.Context) error {
	raw, err := b.client().BypassV1(ctx, &b.BaseDevice, map[string]any{
		"getLightStatus": "get",
	})
	if err != nil {
		return fmt.Errorf("fetching tunable bulb status: %w", err)
	}

	var result struct {
		Light struct {
			Action     string `json:"action"`
			Brightness int    `json:"brightness"`
			ColorTempe int    `json:"colorTempe"`
		} `json:"light"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("%w: decoding tunable bulb status: %w", ErrAPIResponse, err)
	}

	b.DeviceStatus = result.Light.Action
	b.Brightness = result.Light.Brightness
	b.ColorTemp = result.Light.ColorTempe
	return nil
}

func (b *BulbESL100CW) setStatus(ctx context.Context, status string) error {
	_, err := b.client().BypassV1(ctx, &b.BaseDevice, map[string]any{
		"light": map[string]any{"action": status},
	})
	if err != nil {
		return fmt.Errorf("setting tunable bulb status: %w", err)
	}
	b.DeviceStatus = status
	return nil
}

func (b *BulbESL100CW) TurnOn(ctx context.Context) error  { return b.setStatus(ctx, StatusOn) }
func (b *BulbESL100CW) TurnOff(ctx context.Context) error { return b.setStatus(ctx, StatusOff) }

// SetBrightness dims the bulb and switches it on. Levels range 1-100.
func (b *BulbESL100CW) SetBrightness(ctx context.Context, level int) error {
	if level < 1 || level > 100 {
		return fmt.Errorf("%w: brightness %d", ErrOutOfRange, level)
	}
	_, err := b.client().BypassV1(ctx, &b.BaseDevice, map[string]any{
		"light": map[string]any{"action": StatusOn, "brightness": level},
	})
	if err != nil {
		return fmt.Errorf("setting tunable bulb brightness: %w", err)
	}
	b.Brightness = level
	b.DeviceStatus = StatusOn
	return nil
}

// SetColorTemp sets the white colour temperature as a percentage,
// 0 (warm) to 100 (cold).
func (b *BulbESL100CW) SetColorTemp(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: color temperature %d", ErrOutOfRange, percent)
	}
	_, err := b.client().BypassV1(ctx, &b.BaseDevice, map[string]any{
		"light": map[string]any{"action": StatusOn, "colorTempe": percent},
	})
	if err != nil {
		return fmt.Errorf("setting tunable bulb color temperature: %w", err)
	}
	b.ColorTemp = percent
	b.DeviceStatus = StatusOn
	return nil
}

func (b *BulbESL100CW) Details() map[string]any {
	d := b.baseDetails()
	d["brightness"] = b.Brightness
	d["color_temp"] = b.ColorTemp
	return d
}
