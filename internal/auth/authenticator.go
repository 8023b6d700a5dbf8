package auth

import (
	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
)

// Authenticator validates operator credentials against the configured
// admin account and issues access tokens for the local API.
type Authenticator struct {
	cfg config.SecurityConfig
}

// NewAuthenticator creates an Authenticator from the security configuration.
func NewAuthenticator(cfg config.SecurityConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Login checks the supplied credentials and, on success, returns a signed
// access token.
//
// Returns ErrInvalidCredentials when the username or password does not
// match the configured admin account. The error never distinguishes
// between an unknown username and a wrong password.
func (a *Authenticator) Login(username, password string) (string, error) {
	if username != a.cfg.Admin.Username {
		// Burn the same hashing cost as a real verification so a wrong
		// username is not distinguishable by timing.
		_, _ = VerifyPassword(password, a.cfg.Admin.Password)
		return "", ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, a.cfg.Admin.Password)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	return GenerateToken(username, a.cfg.JWT.Secret, a.cfg.JWT.AccessTokenTTL)
}

// Verify parses and validates an access token, returning its claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	return ParseToken(tokenString, a.cfg.JWT.Secret)
}
