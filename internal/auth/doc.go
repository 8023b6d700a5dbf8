// Package auth provides authentication for the vesyncd local API.
//
// The daemon has a single operator account defined in configuration.
// Successful login issues a short-lived HS256 JWT access token; every
// protected API request is validated by signature and expiry only, with
// no database lookup.
//
// The configured admin password may be stored either as an Argon2id PHC
// hash (recommended) or as plaintext for development setups. Verification
// is constant-time in both cases.
//
// # Security Considerations
//
//   - The JWT signing secret must be at least 32 characters and set via
//     VESYNCD_JWT_SECRET in production.
//   - Passwords and tokens must never appear in log output.
//   - Tokens are bearer credentials: serve the API over TLS when it is
//     reachable beyond localhost.
package auth
