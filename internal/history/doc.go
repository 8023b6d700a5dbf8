// Package history persists the local view of the VeSync device fleet.
//
// This package manages:
//   - The devices table, a mirror of the most recent cloud device list
//   - State history, a snapshot per observed device state transition
//   - Energy history, per-outlet readings for the week/month/year windows
//   - Retention, pruning history rows past a configured age
//
// The poller writes here after every polling cycle; the HTTP API reads
// from here so device listings and history queries never touch the
// cloud directly.
//
// All timestamps are stored as UTC RFC 3339 strings.
package history
