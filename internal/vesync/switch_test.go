package vesync

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func newSwitchUnderTest(t *testing.T, stub *cloudStub, deviceType string) Device {
	t.Helper()
	m := newTestManager(t, stub)
	dev, ok := buildDevice(record("cid-1", deviceType, "Test Switch"), m)
	if !ok {
		t.Fatalf("buildDevice(%q) not recognised", deviceType)
	}
	return dev
}

func TestWallSwitch_UpdateAndTurn(t *testing.T) {
	stub := newCloudStub(t)
	stub.result("/inwallswitch/v1/device/devicedetail", map[string]any{
		"deviceStatus":     "on",
		"connectionStatus": "online",
		"activeTime":       120,
	})

	dev := newSwitchUnderTest(t, stub, "ESWL01")
	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	s := dev.(*WallSwitch)
	if s.ActiveTime != 120 {
		t.Errorf("ActiveTime = %d, want 120", s.ActiveTime)
	}

	if err := dev.TurnOff(context.Background()); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	if s.DeviceStatus != StatusOff {
		t.Errorf("DeviceStatus = %q, want off", s.DeviceStatus)
	}
	if n := stub.requests["/inwallswitch/v1/device/devicestatus"]; n != 1 {
		t.Errorf("devicestatus called %d times, want 1", n)
	}
}

func TestDimmerSwitch_Update(t *testing.T) {
	stub := newCloudStub(t)
	stub.result("/dimmer/v1/device/devicedetail", map[string]any{
		"deviceStatus":         "on",
		"connectionStatus":     "online",
		"activeTime":           30,
		"brightness":           "55",
		"indicatorlightStatus": "on",
		"rgbStatus":            "off",
		"rgbValue":             map[string]any{"red": 10, "green": 20, "blue": 30},
	})

	s := newSwitchUnderTest(t, stub, "ESWD16").(*DimmerSwitch)
	if err := s.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if s.Brightness != 55 {
		t.Errorf("Brightness = %d, want 55", s.Brightness)
	}
	if s.IndicatorStatus != "on" || s.RGBStatus != "off" {
		t.Errorf("Indicator/RGB = %q/%q, want on/off", s.IndicatorStatus, s.RGBStatus)
	}
	if s.RGBValue != (RGB{Red: 10, Green: 20, Blue: 30}) {
		t.Errorf("RGBValue = %+v", s.RGBValue)
	}
}

func TestDimmerSwitch_SetBrightness(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/dimmer/v1/device/updatebrightness", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["brightness"] != "40" {
			t.Errorf("brightness = %v, want \"40\"", body["brightness"])
		}
		writeEnvelope(w, 0, "ok", nil)
	})

	s := newSwitchUnderTest(t, stub, "ESWD16").(*DimmerSwitch)
	if err := s.SetBrightness(context.Background(), 40); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}
	if s.Brightness != 40 || s.DeviceStatus != StatusOn {
		t.Errorf("Brightness/DeviceStatus = %d/%q, want 40/on", s.Brightness, s.DeviceStatus)
	}

	if err := s.SetBrightness(context.Background(), 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetBrightness(0) error = %v, want ErrOutOfRange", err)
	}
}

func TestDimmerSwitch_SetBrightnessFailureKeepsState(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/dimmer/v1/device/updatebrightness", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, -11, "server busy", nil)
	})

	s := newSwitchUnderTest(t, stub, "ESWD16").(*DimmerSwitch)
	s.Brightness = 70
	s.DeviceStatus = StatusOff

	if err := s.SetBrightness(context.Background(), 40); !errors.Is(err, ErrAPIResponse) {
		t.Fatalf("SetBrightness() error = %v, want ErrAPIResponse", err)
	}
	if s.Brightness != 70 || s.DeviceStatus != StatusOff {
		t.Errorf("Brightness/DeviceStatus = %d/%q, want 70/off", s.Brightness, s.DeviceStatus)
	}
}

func TestDimmerSwitch_RGB(t *testing.T) {
	stub := newCloudStub(t)

	s := newSwitchUnderTest(t, stub, "ESWD16").(*DimmerSwitch)
	color := RGB{Red: 255, Green: 128, Blue: 0}
	if err := s.SetRGBColor(context.Background(), color); err != nil {
		t.Fatalf("SetRGBColor() error = %v", err)
	}
	if s.RGBValue != color || s.RGBStatus != StatusOn {
		t.Errorf("RGBValue/RGBStatus = %+v/%q", s.RGBValue, s.RGBStatus)
	}

	if err := s.SetRGBColor(context.Background(), RGB{Red: 256}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetRGBColor(256) error = %v, want ErrOutOfRange", err)
	}

	if err := s.SetIndicator(context.Background(), "dim"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetIndicator(dim) error = %v, want ErrOutOfRange", err)
	}
	if err := s.SetIndicator(context.Background(), StatusOff); err != nil {
		t.Fatalf("SetIndicator() error = %v", err)
	}
	if s.IndicatorStatus != StatusOff {
		t.Errorf("IndicatorStatus = %q, want off", s.IndicatorStatus)
	}
}
