package vesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// cloudStub is a fake VeSync cloud for driving the client in tests.
// Handlers are registered per path; unhandled paths return code 0 with
// an empty result.
type cloudStub struct {
	t        *testing.T
	server   *httptest.Server
	handlers map[string]http.HandlerFunc

	// requests counts calls per path.
	requests map[string]int
}

func newCloudStub(t *testing.T) *cloudStub {
	t.Helper()
	s := &cloudStub{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests[r.URL.Path]++
		if h, ok := s.handlers[r.URL.Path]; ok {
			h(w, r)
			return
		}
		writeEnvelope(w, 0, "ok", nil)
	}))
	t.Cleanup(s.server.Close)
	return s
}

// handle registers a handler for a path.
func (s *cloudStub) handle(path string, h http.HandlerFunc) {
	s.handlers[path] = h
}

// result registers a handler that answers with code 0 and the given result.
func (s *cloudStub) result(path string, result any) {
	s.handle(path, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 0, "ok", result)
	})
}

// writeEnvelope writes the standard cloud response envelope.
func writeEnvelope(w http.ResponseWriter, code int, msg string, result any) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"code": code, "msg": msg, "traceId": "test"}
	if result != nil {
		resp["result"] = result
	}
	json.NewEncoder(w).Encode(resp) //nolint:errcheck // Test helper
}

// decodeBody decodes a request body into a map for assertions.
func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
	return body
}

// newTestClient returns a logged-in client pointed at the stub.
func newTestClient(t *testing.T, stub *cloudStub) *Client {
	t.Helper()
	stub.result("/cloud/v1/user/login", map[string]any{
		"token":       "test-token",
		"accountID":   "test-account",
		"countryCode": "GB",
	})
	c := NewClient(ClientConfig{BaseURL: stub.server.URL, TimeZone: "Europe/London"})
	if err := c.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return c
}

// newTestManager returns a logged-in manager pointed at the stub.
func newTestManager(t *testing.T, stub *cloudStub) *Manager {
	t.Helper()
	client := newTestClient(t, stub)
	m := NewManager(ManagerConfig{
		Username: "user@example.com",
		Password: "secret",
		Client:   client,
	})
	m.enabled = true
	return m
}

// stubDeviceList registers a device list response.
func (s *cloudStub) stubDeviceList(records ...map[string]any) {
	s.result("/cloud/v1/deviceManaged/devices", map[string]any{
		"total": len(records),
		"list":  records,
	})
}

// outletRecord returns a minimal valid 10A outlet list record.
func outletRecord(cid, name string) map[string]any {
	return map[string]any{
		"cid":              cid,
		"uuid":             cid + "-uuid",
		"macID":            cid + "-mac",
		"deviceType":       "ESW03-USA",
		"deviceName":       name,
		"configModule":     "outlet10a",
		"connectionStatus": "online",
		"deviceStatus":     "on",
		"subDeviceNo":      0,
	}
}
