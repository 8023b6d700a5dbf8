// Package poller drives the VeSync cloud refresh loop for vesyncd.
//
// The vesync Manager and Client are single-goroutine types; the poller
// owns the one goroutine (and mutex) that touches them. Everything else
// in the daemon reaches the cloud through this package:
//
//   - the fixed-interval loop refreshes the device list, device details,
//     and outlet energy history
//   - each cycle is persisted to the local SQLite history, published to
//     MQTT (retained), broadcast to WebSocket clients, and recorded to
//     InfluxDB
//   - device commands from the REST API and the vesync/command/+ MQTT
//     topic are serialised through Apply
//
// MQTT, InfluxDB, the history repository, and the WebSocket broadcaster
// are all optional. A poller constructed with only a Manager and Logger
// still refreshes devices and serves API reads.
package poller
