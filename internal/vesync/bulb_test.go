package vesync

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func newBulbUnderTest(t *testing.T, stub *cloudStub, deviceType string) Device {
	t.Helper()
	m := newTestManager(t, stub)
	dev, ok := buildDevice(record("cid-1", deviceType, "Test Bulb"), m)
	if !ok {
		t.Fatalf("buildDevice(%q) not recognised", deviceType)
	}
	return dev
}

func TestBulbESL100_Update(t *testing.T) {
	stub := newCloudStub(t)
	// brightNess arrives as a string on this model.
	stub.result("/SmartBulb/v1/device/devicedetail", map[string]any{
		"deviceStatus":     "on",
		"connectionStatus": "online",
		"brightNess":       "42",
	})

	dev := newBulbUnderTest(t, stub, "ESL100")
	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	b := dev.(*BulbESL100)
	if b.Brightness != 42 {
		t.Errorf("Brightness = %d, want 42", b.Brightness)
	}
}

func TestBulbESL100_SetBrightness(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/SmartBulb/v1/device/updateBrightness", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["brightNess"] != "75" {
			t.Errorf("brightNess = %v, want \"75\"", body["brightNess"])
		}
		writeEnvelope(w, 0, "ok", nil)
	})

	b := newBulbUnderTest(t, stub, "ESL100").(*BulbESL100)
	b.DeviceStatus = StatusOff

	if err := b.SetBrightness(context.Background(), 75); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}
	if b.Brightness != 75 {
		t.Errorf("Brightness = %d, want 75", b.Brightness)
	}
	// Dimming implies power on.
	if b.DeviceStatus != StatusOn {
		t.Errorf("DeviceStatus = %q, want on", b.DeviceStatus)
	}
}

func TestBulbESL100_SetBrightnessFailureKeepsState(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/SmartBulb/v1/device/updateBrightness", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, -11, "server busy", nil)
	})

	b := newBulbUnderTest(t, stub, "ESL100").(*BulbESL100)
	b.Brightness = 30
	b.DeviceStatus = StatusOff

	if err := b.SetBrightness(context.Background(), 75); !errors.Is(err, ErrAPIResponse) {
		t.Fatalf("SetBrightness() error = %v, want ErrAPIResponse", err)
	}
	if b.Brightness != 30 || b.DeviceStatus != StatusOff {
		t.Errorf("Brightness/DeviceStatus = %d/%q, want 30/off", b.Brightness, b.DeviceStatus)
	}
}

func TestBulbESL100_SetBrightness_OutOfRange(t *testing.T) {
	b := newBulbUnderTest(t, newCloudStub(t), "ESL100").(*BulbESL100)

	for _, level := range []int{0, -1, 101} {
		if err := b.SetBrightness(context.Background(), level); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SetBrightness(%d) error = %v, want ErrOutOfRange", level, err)
		}
	}
}

func TestBulbESL100CW_Update(t *testing.T) {
	stub := newCloudStub(t)
	stub.result("/cloud/v1/deviceManaged/bypass", map[string]any{
		"light": map[string]any{
			"action":     "on",
			"brightness": 60,
			"colorTempe": 30,
		},
	})

	b := newBulbUnderTest(t, stub, "ESL100CW").(*BulbESL100CW)
	if err := b.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if b.Brightness != 60 || b.ColorTemp != 30 {
		t.Errorf("Brightness/ColorTemp = %d/%d, want 60/30", b.Brightness, b.ColorTemp)
	}
	if b.DeviceStatus != StatusOn {
		t.Errorf("DeviceStatus = %q, want on", b.DeviceStatus)
	}
}

func TestBulbESL100CW_SetColorTemp(t *testing.T) {
	stub := newCloudStub(t)

	b := newBulbUnderTest(t, stub, "ESL100CW").(*BulbESL100CW)
	if err := b.SetColorTemp(context.Background(), 80); err != nil {
		t.Fatalf("SetColorTemp() error = %v", err)
	}
	if b.ColorTemp != 80 {
		t.Errorf("ColorTemp = %d, want 80", b.ColorTemp)
	}

	if err := b.SetColorTemp(context.Background(), 101); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetColorTemp(101) error = %v, want ErrOutOfRange", err)
	}
	if n := stub.requests["/cloud/v1/deviceManaged/bypass"]; n != 1 {
		t.Errorf("bypass called %d times, want 1", n)
	}
}
