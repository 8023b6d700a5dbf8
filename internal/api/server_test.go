package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vesynchub/vesync-core/internal/history"
	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
	"github.com/vesynchub/vesync-core/internal/infrastructure/logging"
	"github.com/vesynchub/vesync-core/internal/poller"
	"github.com/vesynchub/vesync-core/internal/vesync"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "correct horse battery staple"
	testJWTSecret     = "test-secret-key-at-least-32-chars!"
)

// newCloudStub starts a fake VeSync cloud serving a single 10A outlet.
func newCloudStub(t *testing.T) *httptest.Server {
	t.Helper()

	writeEnvelope := func(w http.ResponseWriter, result any) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"code": 0, "msg": "ok", "traceId": "test"}
		if result != nil {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // Test helper
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cloud/v1/user/login":
			writeEnvelope(w, map[string]any{
				"token":       "test-token",
				"accountID":   "test-account",
				"countryCode": "GB",
			})
		case "/cloud/v1/deviceManaged/devices":
			writeEnvelope(w, map[string]any{
				"total": 1,
				"list": []map[string]any{
					{
						"cid":              "cid-outlet",
						"uuid":             "uuid-outlet",
						"deviceType":       "ESW03-USA",
						"deviceName":       "Desk Plug",
						"configModule":     "outlet10a",
						"connectionStatus": "online",
						"deviceStatus":     "on",
						"subDeviceNo":      0,
					},
				},
			})
		case "/10a/v1/device/devicedetail":
			writeEnvelope(w, map[string]any{
				"deviceStatus":     "on",
				"connectionStatus": "online",
				"activeTime":       50,
				"energy":           1.2,
				"power":            3.5,
				"voltage":          240.1,
			})
		default:
			writeEnvelope(w, nil)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// fakeHistoryRepo serves canned history rows.
type fakeHistoryRepo struct {
	mu           sync.Mutex
	stateRows    []history.StateEntry
	energyRows   []history.EnergyEntry
	lastLimit    int
	lastPeriod   string
}

func (f *fakeHistoryRepo) SyncDevices(context.Context, []history.DeviceRow) error { return nil }

func (f *fakeHistoryRepo) GetDevices(context.Context) ([]history.DeviceRow, error) {
	return nil, nil
}

func (f *fakeHistoryRepo) RecordState(context.Context, history.StateEntry) error { return nil }

func (f *fakeHistoryRepo) GetStateHistory(_ context.Context, cid string, _, limit int) ([]history.StateEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []history.StateEntry
	for _, e := range f.stateRows {
		if e.CID == cid {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) RecordEnergy(context.Context, history.EnergyEntry) error { return nil }

func (f *fakeHistoryRepo) GetEnergyHistory(_ context.Context, cid string, _ int, period string, limit int) ([]history.EnergyEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.lastPeriod = period
	var out []history.EnergyEntry
	for _, e := range f.energyRows {
		if e.CID == cid && e.Period == period {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

// newTestServer builds a server over a polled single-outlet fleet.
// The returned handler is the full router with middleware applied.
func newTestServer(t *testing.T, repo history.Repository) (*Server, http.Handler) {
	t.Helper()

	stub := newCloudStub(t)
	client := vesync.NewClient(vesync.ClientConfig{BaseURL: stub.URL})
	manager := vesync.NewManager(vesync.ManagerConfig{
		Username: "user@example.com",
		Password: "secret",
		Client:   client,
	})
	if err := manager.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	p, err := poller.New(poller.Deps{
		Config:  config.PollerConfig{Interval: 60},
		Manager: manager,
		Logger:  logging.Default(),
	})
	if err != nil {
		t.Fatalf("poller.New() error = %v", err)
	}
	p.Poll(context.Background())

	srv, err := New(Deps{
		Config: config.APIConfig{},
		WS: config.WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    60,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
			Admin: config.AdminUserConfig{
				Username: testAdminUser,
				Password: testAdminPassword,
			},
		},
		Logger:  logging.Default(),
		Poller:  p,
		History: repo,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.Hub() // handleWebSocket needs the hub in place

	return srv, srv.buildRouter()
}

// loginToken performs a login round trip and returns the bearer token.
func loginToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	body, _ := json.Marshal(loginRequest{Username: testAdminUser, Password: testAdminPassword}) //nolint:errcheck // static input
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

// doRequest runs an authenticated request through the router.
func doRequest(t *testing.T, handler http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoAuthRequired(t *testing.T) {
	_, handler := newTestServer(t, nil)

	rec := doRequest(t, handler, "", http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestLogin(t *testing.T) {
	_, handler := newTestServer(t, nil)

	t.Run("valid credentials", func(t *testing.T) {
		body, _ := json.Marshal(loginRequest{Username: testAdminUser, Password: testAdminPassword}) //nolint:errcheck // static input
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var resp loginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.AccessToken == "" {
			t.Error("access_token is empty")
		}
		if resp.TokenType != "Bearer" {
			t.Errorf("token_type = %q, want Bearer", resp.TokenType)
		}
		if resp.ExpiresIn != 15*60 {
			t.Errorf("expires_in = %d, want %d", resp.ExpiresIn, 15*60)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		body, _ := json.Marshal(loginRequest{Username: testAdminUser, Password: "wrong"}) //nolint:errcheck // static input
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json")))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	_, handler := newTestServer(t, nil)

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(t, handler, "", http.MethodGet, "/api/v1/devices", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doRequest(t, handler, "not.a.token", http.MethodGet, "/api/v1/devices", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token := loginToken(t, handler)
		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestListDevices(t *testing.T) {
	_, handler := newTestServer(t, nil)
	token := loginToken(t, handler)

	rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Devices []poller.DeviceView `json:"devices"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Devices) != 1 {
		t.Fatalf("count = %d with %d devices, want 1", resp.Count, len(resp.Devices))
	}
	if resp.Devices[0].Key != "cid-outlet" {
		t.Errorf("key = %q, want cid-outlet", resp.Devices[0].Key)
	}
}

func TestGetDevice(t *testing.T) {
	_, handler := newTestServer(t, nil)
	token := loginToken(t, handler)

	t.Run("known device", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var view poller.DeviceView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if view.DeviceStatus != "on" {
			t.Errorf("status = %q, want on", view.DeviceStatus)
		}
		if view.DeviceType != "ESW03-USA" {
			t.Errorf("device type = %q, want ESW03-USA", view.DeviceType)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/no-such-device", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestDeviceCommand(t *testing.T) {
	_, handler := newTestServer(t, nil)
	token := loginToken(t, handler)

	t.Run("power off", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodPost, "/api/v1/devices/cid-outlet/command",
			poller.Command{Name: poller.CmdPower, Status: "off"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var view poller.DeviceView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if view.DeviceStatus != "off" {
			t.Errorf("status = %q, want off", view.DeviceStatus)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodPost, "/api/v1/devices/cid-outlet/command",
			poller.Command{Name: "levitate"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unsupported command", func(t *testing.T) {
		// A plain outlet has no brightness control.
		rec := doRequest(t, handler, token, http.MethodPost, "/api/v1/devices/cid-outlet/command",
			poller.Command{Name: poller.CmdBrightness, Value: 50})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodPost, "/api/v1/devices/no-such-device/command",
			poller.Command{Name: poller.CmdPower, Status: "on"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("missing command name", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodPost, "/api/v1/devices/cid-outlet/command",
			map[string]any{"status": "on"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestSetPower(t *testing.T) {
	_, handler := newTestServer(t, nil)
	token := loginToken(t, handler)

	rec := doRequest(t, handler, token, http.MethodPut, "/api/v1/devices/cid-outlet/power",
		powerRequest{Status: "off"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var view poller.DeviceView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.DeviceStatus != "off" {
		t.Errorf("status = %q, want off", view.DeviceStatus)
	}
}

func TestSetLevelEndpoints(t *testing.T) {
	_, handler := newTestServer(t, nil)
	token := loginToken(t, handler)

	// The test fleet's outlet has no level or mode capabilities, so
	// every well-formed request maps to a validation error.
	for _, path := range []string{"brightness", "mist", "humidity"} {
		rec := doRequest(t, handler, token, http.MethodPut, "/api/v1/devices/cid-outlet/"+path,
			valueRequest{Value: 50})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("PUT %s status = %d, want 400", path, rec.Code)
		}
	}

	rec := doRequest(t, handler, token, http.MethodPut, "/api/v1/devices/cid-outlet/mode",
		modeRequest{Mode: "auto"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT mode status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, handler, token, http.MethodPut, "/api/v1/devices/nope/brightness",
		valueRequest{Value: 50})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", rec.Code)
	}
}

func TestStateHistory(t *testing.T) {
	t.Run("without history storage", func(t *testing.T) {
		_, handler := newTestServer(t, nil)
		token := loginToken(t, handler)

		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet/history", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("with entries", func(t *testing.T) {
		repo := &fakeHistoryRepo{
			stateRows: []history.StateEntry{
				{ID: 2, CID: "cid-outlet", DeviceStatus: "off", Connection: "online", RecordedAt: time.Now()},
				{ID: 1, CID: "cid-outlet", DeviceStatus: "on", Connection: "online", RecordedAt: time.Now().Add(-time.Minute)},
			},
		}
		_, handler := newTestServer(t, repo)
		token := loginToken(t, handler)

		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet/history?limit=10", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Entries []history.StateEntry `json:"entries"`
			Count   int                  `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Count != 2 {
			t.Errorf("count = %d, want 2", resp.Count)
		}
		if repo.lastLimit != 10 {
			t.Errorf("limit passed to repository = %d, want 10", repo.lastLimit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, handler := newTestServer(t, &fakeHistoryRepo{})
		token := loginToken(t, handler)

		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet/history?limit=zero", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestEnergyHistory(t *testing.T) {
	repo := &fakeHistoryRepo{
		energyRows: []history.EnergyEntry{
			{ID: 1, CID: "cid-outlet", Period: "month", EnergyKWH: 0.4, RecordedAt: time.Now()},
		},
	}
	_, handler := newTestServer(t, repo)
	token := loginToken(t, handler)

	t.Run("explicit period", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet/energy?period=month", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Period  string                 `json:"period"`
			Entries []history.EnergyEntry  `json:"entries"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Period != "month" || len(resp.Entries) != 1 {
			t.Errorf("period = %q with %d entries, want month with 1", resp.Period, len(resp.Entries))
		}
	})

	t.Run("default period is week", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet/energy", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if repo.lastPeriod != "week" {
			t.Errorf("period passed to repository = %q, want week", repo.lastPeriod)
		}
	})

	t.Run("invalid period", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodGet, "/api/v1/devices/cid-outlet/energy?period=decade", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: defaultHistoryLimit},
		{raw: "25", want: 25},
		{raw: "9999", want: maxHistoryLimit},
		{raw: "0", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "ten", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseLimit(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLimit(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLimit(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestTicketStore(t *testing.T) {
	ts := newTicketStore()

	ticket := ts.issue("admin")
	if ticket == "" {
		t.Fatal("issue() returned empty ticket")
	}

	username, ok := ts.validate(ticket)
	if !ok || username != "admin" {
		t.Fatalf("validate() = (%q, %v), want (admin, true)", username, ok)
	}

	// Single-use: second validation must fail.
	if _, ok := ts.validate(ticket); ok {
		t.Error("validate() accepted a consumed ticket")
	}

	// Expired tickets are rejected.
	expired := generateTicket()
	ts.mu.Lock()
	ts.tickets[expired] = ticketEntry{username: "admin", expiresAt: time.Now().Add(-time.Second)}
	ts.mu.Unlock()
	if _, ok := ts.validate(expired); ok {
		t.Error("validate() accepted an expired ticket")
	}

	// cleanExpired removes stale entries without touching live ones.
	live := ts.issue("admin")
	ts.mu.Lock()
	ts.tickets["stale"] = ticketEntry{expiresAt: time.Now().Add(-ticketTTL)}
	ts.mu.Unlock()
	ts.cleanExpired()
	ts.mu.Lock()
	_, staleKept := ts.tickets["stale"]
	_, liveKept := ts.tickets[live]
	ts.mu.Unlock()
	if staleKept {
		t.Error("cleanExpired() kept a stale ticket")
	}
	if !liveKept {
		t.Error("cleanExpired() removed a live ticket")
	}
}

func TestWebSocket(t *testing.T) {
	srv, handler := newTestServer(t, nil)
	token := loginToken(t, handler)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	t.Run("missing ticket rejected", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
		//nolint:bodyclose // Dial fails; no body to close on nil response path
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatal("Dial succeeded without a ticket")
		}
		if resp != nil && resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("ticket flow with subscribe and broadcast", func(t *testing.T) {
		rec := doRequest(t, handler, token, http.MethodPost, "/api/v1/auth/ws-ticket", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("ws-ticket status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var ticketResp struct {
			Ticket string `json:"ticket"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &ticketResp); err != nil {
			t.Fatalf("decode ticket response: %v", err)
		}

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticketResp.Ticket
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer conn.Close()
		resp.Body.Close() //nolint:errcheck // Test cleanup

		// Subscribe to poll events.
		sub := WSMessage{
			Type:    WSTypeSubscribe,
			ID:      "1",
			Payload: WSSubscribePayload{Channels: []string{"poll.completed"}},
		}
		if err := conn.WriteJSON(sub); err != nil {
			t.Fatalf("WriteJSON(subscribe) error = %v", err)
		}

		conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck // Test deadline
		var ack WSMessage
		if err := conn.ReadJSON(&ack); err != nil {
			t.Fatalf("ReadJSON(ack) error = %v", err)
		}
		if ack.Type != WSTypeResponse || ack.ID != "1" {
			t.Fatalf("ack = %+v, want response with id 1", ack)
		}

		// Broadcast reaches the subscribed client.
		srv.Hub().Broadcast("poll.completed", map[string]any{"devices": 1})
		var event WSMessage
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("ReadJSON(event) error = %v", err)
		}
		if event.Type != WSTypeEvent || event.EventType != "poll.completed" {
			t.Errorf("event = %+v, want poll.completed event", event)
		}

		// Tickets are single-use.
		replayURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticketResp.Ticket
		//nolint:bodyclose // Dial fails; no body to close on nil response path
		_, replayResp, err := websocket.DefaultDialer.Dial(replayURL, nil)
		if err == nil {
			t.Fatal("Dial succeeded with a consumed ticket")
		}
		if replayResp != nil && replayResp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", replayResp.StatusCode)
		}
	})
}
