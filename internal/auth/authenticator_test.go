package auth

import (
	"errors"
	"testing"

	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
)

func testSecurityConfig(t *testing.T, hashed bool) config.SecurityConfig {
	t.Helper()

	password := "operator-pass"
	if hashed {
		var err error
		password, err = HashPassword("operator-pass")
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
	}

	return config.SecurityConfig{
		JWT: config.JWTConfig{
			Secret:         testSecret,
			AccessTokenTTL: 15,
		},
		Admin: config.AdminUserConfig{
			Username: "admin",
			Password: password,
		},
	}
}

func TestAuthenticator_Login(t *testing.T) {
	for _, mode := range []struct {
		name   string
		hashed bool
	}{
		{name: "hashed password", hashed: true},
		{name: "plaintext password", hashed: false},
	} {
		t.Run(mode.name, func(t *testing.T) {
			a := NewAuthenticator(testSecurityConfig(t, mode.hashed))

			token, err := a.Login("admin", "operator-pass")
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}

			claims, err := a.Verify(token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Username != "admin" {
				t.Errorf("Username = %q, want %q", claims.Username, "admin")
			}
		})
	}
}

func TestAuthenticator_LoginRejected(t *testing.T) {
	a := NewAuthenticator(testSecurityConfig(t, true))

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "admin", password: "nope"},
		{name: "unknown username", username: "root", password: "operator-pass"},
		{name: "empty credentials", username: "", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Login(tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticator_VerifyRejectsForeignToken(t *testing.T) {
	a := NewAuthenticator(testSecurityConfig(t, false))

	foreign, err := GenerateToken("admin", "some-other-signing-secret-entirely", 15)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := a.Verify(foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}
