// Package api implements the HTTP REST API and WebSocket server for vesyncd.
//
// This package provides:
//   - REST endpoints for the VeSync device fleet: listing, state, commands,
//     state history, and energy history
//   - WebSocket hub for real-time state change broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limits)
//   - TLS support for deployments reachable beyond localhost
//
// # Architecture
//
// The API server sits between local clients (dashboards, scripts, home
// automation) and the poller, which owns all VeSync cloud access. Reads
// return the poller's last snapshot; commands are serialised through the
// poller and reach the cloud immediately. History endpoints query the
// local SQLite store directly.
//
// # Security
//
// Authentication uses short-lived JWT tokens issued against the single
// configured admin account. WebSocket connections use single-use tickets
// to keep tokens out of URLs. The VeSync account password and cloud
// token must never appear in log output or API responses.
//
// # Graceful Degradation
//
// The server operates without the history repository (history endpoints
// return 503) and without MQTT; device reads and commands only need the
// poller.
package api
