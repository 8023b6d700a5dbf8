package vesync

import (
	"context"
	"fmt"
	"strconv"
)

const switchPrefix = "/inwallswitch/v1/device"
const dimmerPrefix = "/dimmer/v1/device"

// RGB is a night light colour value. Channels range 0-255.
type RGB struct {
	Red   int `json:"red"`
	Green int `json:"green"`
	Blue  int `json:"blue"`
}

func (c RGB) validate() error {
	for _, v := range []int{c.Red, c.Green, c.Blue} {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: rgb channel %d", ErrOutOfRange, v)
		}
	}
	return nil
}

// WallSwitch is the in-wall toggle switch (ESWL01, ESWL03).
type WallSwitch struct {
	BaseDevice

	ActiveTime int
}

func newWallSwitch(rec DeviceRecord, m *Manager) Device {
	return &WallSwitch{BaseDevice: newBaseDevice(rec, m)}
}

func (s *WallSwitch) Base() *BaseDevice { return &s.BaseDevice }

func (s *WallSwitch) Update(ctx context.Context) error {
	body := s.client().newDetailRequest(s.UUID)
	var detail struct {
		DeviceStatus     string `json:"deviceStatus"`
		ConnectionStatus string `json:"connectionStatus"`
		ActiveTime       int    `json:"activeTime"`
	}
	if err := s.client().post(ctx, switchPrefix+"/devicedetail", s.client().authHeaders(), body, &detail); err != nil {
		return fmt.Errorf("fetching wall switch detail: %w", err)
	}

	s.DeviceStatus = detail.DeviceStatus
	if detail.ConnectionStatus != "" {
		s.ConnectionStatus = detail.ConnectionStatus
	}
	s.ActiveTime = detail.ActiveTime
	return nil
}

func (s *WallSwitch) setStatus(ctx context.Context, status string) error {
	body := s.client().newStatusRequest(s.UUID, status)
	if err := s.client().put(ctx, switchPrefix+"/devicestatus", body, nil); err != nil {
		return fmt.Errorf("setting wall switch status: %w", err)
	}
	s.DeviceStatus = status
	return nil
}

func (s *WallSwitch) TurnOn(ctx context.Context) error  { return s.setStatus(ctx, StatusOn) }
func (s *WallSwitch) TurnOff(ctx context.Context) error { return s.setStatus(ctx, StatusOff) }

func (s *WallSwitch) Details() map[string]any {
	d := s.baseDetails()
	d["active_time"] = s.ActiveTime
	return d
}

// DimmerSwitch is the in-wall dimmer (ESWD16). Beyond load dimming it
// carries an indicator light and an RGB night light strip.
type DimmerSwitch struct {
	BaseDevice

	ActiveTime      int
	Brightness      int
	IndicatorStatus string
	RGBStatus       string
	RGBValue        RGB
}

func newDimmerSwitch(rec DeviceRecord, m *Manager) Device {
	return &DimmerSwitch{BaseDevice: newBaseDevice(rec, m)}
}

func (s *DimmerSwitch) Base() *BaseDevice { return &s.BaseDevice }

func (s *DimmerSwitch) Update(ctx context.Context) error {
	body := s.client().newDetailRequest(s.UUID)
	var detail struct {
		DeviceStatus         string  `json:"deviceStatus"`
		ConnectionStatus     string  `json:"connectionStatus"`
		ActiveTime           int     `json:"activeTime"`
		Brightness           flexInt `json:"brightness"`
		IndicatorlightStatus string  `json:"indicatorlightStatus"`
		RGBStatus            string  `json:"rgbStatus"`
		RGBValue             RGB     `json:"rgbValue"`
	}
	if err := s.client().post(ctx, dimmerPrefix+"/devicedetail", s.client().authHeaders(), body, &detail); err != nil {
		return fmt.Errorf("fetching dimmer detail: %w", err)
	}

	s.DeviceStatus = detail.DeviceStatus
	if detail.ConnectionStatus != "" {
		s.ConnectionStatus = detail.ConnectionStatus
	}
	s.ActiveTime = detail.ActiveTime
	s.Brightness = int(detail.Brightness)
	s.IndicatorStatus = detail.IndicatorlightStatus
	s.RGBStatus = detail.RGBStatus
	s.RGBValue = detail.RGBValue
	return nil
}

func (s *DimmerSwitch) setStatus(ctx context.Context, status string) error {
	body := s.client().newStatusRequest(s.UUID, status)
	if err := s.client().put(ctx, dimmerPrefix+"/devicestatus", body, nil); err != nil {
		return fmt.Errorf("setting dimmer status: %w", err)
	}
	s.DeviceStatus = status
	return nil
}

func (s *DimmerSwitch) TurnOn(ctx context.Context) error  { return s.setStatus(ctx, StatusOn) }
func (s *DimmerSwitch) TurnOff(ctx context.Context) error { return s.setStatus(ctx, StatusOff) }

// SetBrightness dims the load. Levels range 1-100.
func (s *DimmerSwitch) SetBrightness(ctx context.Context, level int) error {
	if level < 1 || level > 100 {
		return fmt.Errorf("%w: brightness %d", ErrOutOfRange, level)
	}
	body := brightnessRequest{
		authRequest: s.client().newAuthRequest(),
		UUID:        s.UUID,
		Status:      StatusOn,
		Brightness:  strconv.Itoa(level),
	}
	if err := s.client().put(ctx, dimmerPrefix+"/updatebrightness", body, nil); err != nil {
		return fmt.Errorf("setting dimmer brightness: %w", err)
	}
	s.Brightness = level
	s.DeviceStatus = StatusOn
	return nil
}

// SetIndicator switches the faceplate indicator light on or off.
func (s *DimmerSwitch) SetIndicator(ctx context.Context, status string) error {
	if status != StatusOn && status != StatusOff {
		return fmt.Errorf("%w: indicator status %q", ErrOutOfRange, status)
	}
	body := s.client().newStatusRequest(s.UUID, status)
	if err := s.client().put(ctx, dimmerPrefix+"/indicatorlightstatus", body, nil); err != nil {
		return fmt.Errorf("setting dimmer indicator: %w", err)
	}
	s.IndicatorStatus = status
	return nil
}

// rgbRequest is the body for the dimmer RGB night light endpoint.
type rgbRequest struct {
	authRequest
	UUID     string `json:"uuid"`
	Status   string `json:"status"`
	RGBValue RGB    `json:"rgbValue"`
}

// SetRGBColor sets the night light strip colour and switches it on.
func (s *DimmerSwitch) SetRGBColor(ctx context.Context, color RGB) error {
	if err := color.validate(); err != nil {
		return err
	}
	body := rgbRequest{
		authRequest: s.client().newAuthRequest(),
		UUID:        s.UUID,
		Status:      StatusOn,
		RGBValue:    color,
	}
	if err := s.client().put(ctx, dimmerPrefix+"/devicergbstatus", body, nil); err != nil {
		return fmt.Errorf("setting dimmer rgb: %w", err)
	}
	s.RGBStatus = StatusOn
	s.RGBValue = color
	return nil
}

// SetRGBStatus switches the night light strip on or off without
// changing its colour.
func (s *DimmerSwitch) SetRGBStatus(ctx context.Context, status string) error {
	if status != StatusOn && status != StatusOff {
		return fmt.Errorf("%w: rgb status %q", ErrOutOfRange, status)
	}
	body := rgbRequest{
		authRequest: s.client().newAuthRequest(),
		UUID:        s.UUID,
		Status:      status,
		RGBValue:    s.RGBValue,
	}
	if err := s.client().put(ctx, dimmerPrefix+"/devicergbstatus", body, nil); err != nil {
		return fmt.Errorf("setting dimmer rgb status: %w", err)
	}
	s.RGBStatus = status
	return nil
}

func (s *DimmerSwitch) Details() map[string]any {
	d := s.baseDetails()
	d["active_time"] = s.ActiveTime
	d["brightness"] = s.Brightness
	d["indicator_status"] = s.IndicatorStatus
	d["rgb_status"] = s.RGBStatus
	d["rgb_value"] = map[string]int{"red": s.RGBValue.Red, "green": s.RGBValue.Green, "blue": s.RGBValue.Blue}
	return d
}
