package vesync

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestClient_Login(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/cloud/v1/user/login", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["email"] != "user@example.com" {
			t.Errorf("email = %v, want user@example.com", body["email"])
		}
		// The password must travel as an MD5 digest, never in clear.
		if body["password"] == "secret" {
			t.Error("password sent in clear text")
		}
		if body["password"] != hashPassword("secret") {
			t.Errorf("password = %v, want md5 digest", body["password"])
		}
		writeEnvelope(w, 0, "ok", map[string]any{
			"token":       "tok-1",
			"accountID":   "acc-1",
			"countryCode": "US",
		})
	})

	c := NewClient(ClientConfig{BaseURL: stub.server.URL})
	if err := c.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if !c.LoggedIn() {
		t.Error("LoggedIn() = false after successful login")
	}
	if c.Token() != "tok-1" {
		t.Errorf("Token() = %q, want tok-1", c.Token())
	}
	if c.AccountID() != "acc-1" {
		t.Errorf("AccountID() = %q, want acc-1", c.AccountID())
	}
	if c.CountryCode() != "US" {
		t.Errorf("CountryCode() = %q, want US", c.CountryCode())
	}
}

func TestClient_Login_MissingCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "empty username", username: "", password: "secret"},
		{name: "whitespace username", username: "   ", password: "secret"},
		{name: "empty password", username: "user@example.com", password: ""},
		{name: "both empty", username: "", password: ""},
	}

	stub := newCloudStub(t)
	c := NewClient(ClientConfig{BaseURL: stub.server.URL})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Login(context.Background(), tt.username, tt.password)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("Login() error = %v, want ErrMissingCredentials", err)
			}
		})
	}

	// No network call should have been made for local validation failures.
	if n := stub.requests["/cloud/v1/user/login"]; n != 0 {
		t.Errorf("login endpoint called %d times, want 0", n)
	}
}

func TestClient_Login_Rejected(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/cloud/v1/user/login", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, -11201000, "password incorrect", nil)
	})

	c := NewClient(ClientConfig{BaseURL: stub.server.URL})
	err := c.Login(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Login() error = %v, want ErrLoginFailed", err)
	}
	if c.LoggedIn() {
		t.Error("LoggedIn() = true after rejected login")
	}
}

func TestClient_Call_NonZeroCode(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/cloud/v1/deviceManaged/devices", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 4041008, "device timeout", nil)
	})

	c := newTestClient(t, stub)
	err := c.post(context.Background(), "/cloud/v1/deviceManaged/devices", nil, c.newDeviceListRequest(), nil)
	if !errors.Is(err, ErrAPIResponse) {
		t.Errorf("post() error = %v, want ErrAPIResponse", err)
	}
}

func TestClient_Call_HTTPError(t *testing.T) {
	stub := newCloudStub(t)
	stub.handle("/cloud/v1/deviceManaged/devices", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	c := newTestClient(t, stub)
	err := c.post(context.Background(), "/cloud/v1/deviceManaged/devices", nil, c.newDeviceListRequest(), nil)
	if !errors.Is(err, ErrAPIResponse) {
		t.Errorf("post() error = %v, want ErrAPIResponse", err)
	}
}

func TestClient_BypassV2_InnerCode(t *testing.T) {
	stub := newCloudStub(t)
	// Outer envelope succeeds but the device-level code fails.
	stub.result("/cloud/v2/deviceManaged/bypassV2", map[string]any{
		"code": 11000000,
		"msg":  "device offline",
	})

	c := newTestClient(t, stub)
	dev := &BaseDevice{CID: "cid-1", ConfigModule: "mod"}
	_, err := c.BypassV2(context.Background(), dev, "getPurifierStatus", nil)
	if !errors.Is(err, ErrAPIResponse) {
		t.Errorf("BypassV2() error = %v, want ErrAPIResponse", err)
	}
}

func TestClient_BypassV2_NotLoggedIn(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:0"})
	dev := &BaseDevice{CID: "cid-1"}
	_, err := c.BypassV2(context.Background(), dev, "getPurifierStatus", nil)
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("BypassV2() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestHashPassword(t *testing.T) {
	// Known MD5 vector.
	if got := hashPassword("secret"); got != "5ebe2294ecd0e0f08eab7690d2a6ee69" {
		t.Errorf("hashPassword(secret) = %q", got)
	}
}
