package vesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func record(cid, deviceType, name string) DeviceRecord {
	return DeviceRecord{
		CID:              cid,
		UUID:             cid + "-uuid",
		DeviceType:       deviceType,
		DeviceName:       name,
		DeviceStatus:     "on",
		ConnectionStatus: "online",
	}
}

func newBareManager() *Manager {
	return NewManager(ManagerConfig{Client: NewClient(ClientConfig{})})
}

func TestManager_Reconcile_AddsDevices(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{
		record("cid-1", "ESW03-USA", "Lamp"),
		record("cid-2", "ESWL01", "Hall Switch"),
	})

	if len(m.Devices()) != 2 {
		t.Fatalf("len(Devices()) = %d, want 2", len(m.Devices()))
	}
}

func TestManager_Reconcile_PreservesInstances(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{record("cid-1", "ESW03-USA", "Lamp")})

	before := m.DeviceByKey(DeviceKey{CID: "cid-1"})
	if before == nil {
		t.Fatal("device not found after first reconcile")
	}

	// Same device in the next fetch keeps its instance.
	m.reconcile([]DeviceRecord{record("cid-1", "ESW03-USA", "Lamp")})

	after := m.DeviceByKey(DeviceKey{CID: "cid-1"})
	if before != after {
		t.Error("device instance replaced across reconcile")
	}
	if len(m.Devices()) != 1 {
		t.Errorf("len(Devices()) = %d, want 1", len(m.Devices()))
	}
}

func TestManager_Reconcile_RemovesStale(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{
		record("cid-1", "ESW03-USA", "Lamp"),
		record("cid-2", "ESWL01", "Hall Switch"),
	})

	m.reconcile([]DeviceRecord{record("cid-2", "ESWL01", "Hall Switch")})

	if len(m.Devices()) != 1 {
		t.Fatalf("len(Devices()) = %d, want 1", len(m.Devices()))
	}
	if m.DeviceByKey(DeviceKey{CID: "cid-1"}) != nil {
		t.Error("stale device still present")
	}
	if m.DeviceByKey(DeviceKey{CID: "cid-2"}) == nil {
		t.Error("surviving device dropped")
	}
}

func TestManager_Reconcile_RefreshesState(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{record("cid-1", "ESW03-USA", "Lamp")})

	rec := record("cid-1", "ESW03-USA", "Renamed Lamp")
	rec.ConnectionStatus = "offline"
	m.reconcile([]DeviceRecord{rec})

	d := m.DeviceByKey(DeviceKey{CID: "cid-1"})
	if d == nil {
		t.Fatal("device not found")
	}
	if d.Base().DeviceName != "Renamed Lamp" {
		t.Errorf("DeviceName = %q, want Renamed Lamp", d.Base().DeviceName)
	}
	// Offline devices always report status off.
	if d.Base().DeviceStatus != StatusOff {
		t.Errorf("DeviceStatus = %q, want off", d.Base().DeviceStatus)
	}
}

func TestManager_Reconcile_SkipsInvalidRecords(t *testing.T) {
	m := newBareManager()
	noID := DeviceRecord{DeviceType: "ESW03-USA", DeviceName: "Orphan", DeviceStatus: "on"}
	noType := DeviceRecord{CID: "cid-3", DeviceName: "Nameless", DeviceStatus: "on"}

	m.reconcile([]DeviceRecord{noID, noType, record("cid-1", "ESW03-USA", "Lamp")})

	if len(m.Devices()) != 1 {
		t.Fatalf("len(Devices()) = %d, want 1", len(m.Devices()))
	}
}

func TestManager_Reconcile_UnknownTypeSkipped(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{
		record("cid-1", "XYZ-FUTURE-MODEL", "Mystery"),
		record("cid-2", "ESW03-USA", "Lamp"),
	})

	if len(m.Devices()) != 1 {
		t.Fatalf("len(Devices()) = %d, want 1", len(m.Devices()))
	}
	if m.DeviceByKey(DeviceKey{CID: "cid-1"}) != nil {
		t.Error("unknown device type was added")
	}
}

func TestManager_Reconcile_CIDFallback(t *testing.T) {
	m := newBareManager()
	rec := DeviceRecord{
		MacID:            "aa:bb:cc",
		DeviceType:       "ESW03-USA",
		DeviceName:       "Lamp",
		DeviceStatus:     "on",
		ConnectionStatus: "online",
	}
	m.reconcile([]DeviceRecord{rec})

	if m.DeviceByKey(DeviceKey{CID: "aa:bb:cc"}) == nil {
		t.Error("device with mac id fallback not found")
	}
}

func TestManager_Reconcile_SubDevices(t *testing.T) {
	m := newBareManager()
	sock1 := record("cid-1", "ESO15-TB", "Garden 1")
	sock2 := record("cid-1", "ESO15-TB", "Garden 2")
	sock2.SubDeviceNo = 1

	m.reconcile([]DeviceRecord{sock1, sock2})

	if len(m.Devices()) != 2 {
		t.Fatalf("len(Devices()) = %d, want 2", len(m.Devices()))
	}
	if m.DeviceByKey(DeviceKey{CID: "cid-1", SubDeviceNo: 1}) == nil {
		t.Error("sub-device not found")
	}
}

func TestManager_Reconcile_AppendsInListOrder(t *testing.T) {
	m := newBareManager()

	records := make([]DeviceRecord, 10)
	for i := range records {
		records[i] = record(fmt.Sprintf("cid-%02d", i), "ESW03-USA", "Outlet")
	}
	m.reconcile(records)

	devices := m.Devices()
	if len(devices) != len(records) {
		t.Fatalf("len(Devices()) = %d, want %d", len(devices), len(records))
	}
	for i, d := range devices {
		if want := records[i].CID; d.Base().CID != want {
			t.Fatalf("Devices()[%d].CID = %q, want %q", i, d.Base().CID, want)
		}
	}

	// A second pass with one newcomer keeps held devices first and
	// appends the new one at the end.
	records = append(records, record("cid-new", "ESW03-USA", "Late Outlet"))
	m.reconcile(records)

	devices = m.Devices()
	if got := devices[len(devices)-1].Base().CID; got != "cid-new" {
		t.Errorf("last device CID = %q, want cid-new", got)
	}
}

func TestManager_Update_NotLoggedIn(t *testing.T) {
	m := newBareManager()
	if err := m.Update(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Update() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestManager_Update_FetchesAndRateLimits(t *testing.T) {
	stub := newCloudStub(t)
	stub.stubDeviceList(outletRecord("cid-1", "Lamp"))

	m := newTestManager(t, stub)

	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(m.Devices()) != 1 {
		t.Fatalf("len(Devices()) = %d, want 1", len(m.Devices()))
	}

	// A second update inside the rate limit window is a no-op.
	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if n := stub.requests["/cloud/v1/deviceManaged/devices"]; n != 1 {
		t.Errorf("device list fetched %d times, want 1", n)
	}
}

func TestManager_Update_FetchesConfigOnce(t *testing.T) {
	stub := newCloudStub(t)
	stub.stubDeviceList(outletRecord("cid-1", "Lamp"))
	stub.result("/10a/v1/device/configurations", map[string]any{
		"currentFirmVersion": "1.0.0",
		"latestFirmVersion":  "1.2.0",
	})

	m := newTestManager(t, stub)
	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	b := m.Devices()[0].Base()
	if b.Config.LatestFirmware != "1.2.0" {
		t.Errorf("LatestFirmware = %q, want 1.2.0", b.Config.LatestFirmware)
	}
	if !b.FirmwareUpdate() {
		t.Error("FirmwareUpdate() = false, want true")
	}

	// The configuration is held; later passes must not refetch it.
	m.fetchConfig(context.Background(), m.Devices()[0])
	if n := stub.requests["/10a/v1/device/configurations"]; n != 1 {
		t.Errorf("configurations fetched %d times, want 1", n)
	}
}

func TestManager_Update_FailedFetchStillRateLimits(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/cloud/v1/deviceManaged/devices", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, -11, "server busy", nil)
	})

	m := newTestManager(t, stub)
	if err := m.Update(context.Background()); !errors.Is(err, ErrAPIResponse) {
		t.Fatalf("Update() error = %v, want ErrAPIResponse", err)
	}

	// The failed attempt opened the rate limit window, so the next
	// tick must not hit the cloud again.
	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if n := stub.requests["/cloud/v1/deviceManaged/devices"]; n != 1 {
		t.Errorf("device list fetched %d times, want 1", n)
	}
}

func TestManager_Outlets(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{
		record("cid-1", "ESW03-USA", "Lamp"),
		record("cid-2", "ESWL01", "Hall Switch"),
		record("cid-3", "BSDOG01", "Plug"),
	})

	// Only metered outlets implement Outlet; BSDOG01 has no metering.
	outlets := m.Outlets()
	if len(outlets) != 1 {
		t.Fatalf("len(Outlets()) = %d, want 1", len(outlets))
	}
	if outlets[0].Base().CID != "cid-1" {
		t.Errorf("outlet CID = %q, want cid-1", outlets[0].Base().CID)
	}
}

func TestManager_FamilyAccessors(t *testing.T) {
	m := newBareManager()
	m.reconcile([]DeviceRecord{
		record("cid-1", "ESW03-USA", "Lamp"),
		record("cid-2", "ESL100", "Bulb"),
		record("cid-3", "ESWD16", "Dimmer"),
		record("cid-4", "Core300S", "Purifier"),
		record("cid-5", "CS158-AF", "Fryer"),
	})

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"Bulbs", len(m.Bulbs()), 1},
		{"Switches", len(m.Switches()), 1},
		{"Fans", len(m.Fans()), 1},
		{"Kitchen", len(m.Kitchen()), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("len(%s()) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}
