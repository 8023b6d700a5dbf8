// Package vesync implements the VeSync cloud protocol and device model.
//
// This package manages:
//   - Cloud authentication and the request envelope every endpoint uses
//   - A polymorphic device collection (outlets, switches, bulbs,
//     purifiers, humidifiers, the air fryer)
//   - Device list reconciliation against the cloud account
//   - Rate-limited state and energy refreshes
//
// # Device model
//
// Every device type embeds BaseDevice and satisfies the Device
// interface. Model-specific operations (brightness, mist level, fan
// speed, cook cycles) are plain methods on the concrete types; callers
// discover them by type assertion. Devices are built from list records
// by a fixed, ordered set of family tables: bulbs, fans, kitchen,
// outlets, switches.
//
// # Reconciliation
//
// Manager.Update fetches the account device list and reconciles the
// local collection in place. Devices that survive a refresh keep their
// instances and accumulated state; new devices are constructed through
// the factory tables; devices the cloud stops reporting are dropped.
// Devices reported offline always show status off.
//
// # Concurrency
//
// Neither Client nor Manager locks internally. One goroutine at a time
// must drive them; in vesyncd that goroutine belongs to the poller.
//
// Usage:
//
//	client := vesync.NewClient(vesync.ClientConfig{TimeZone: "Europe/London"})
//	manager := vesync.NewManager(vesync.ManagerConfig{
//	    Username: "user@example.com",
//	    Password: "secret",
//	    Client:   client,
//	})
//	if err := manager.Login(ctx); err != nil {
//	    return err
//	}
//	if err := manager.Update(ctx); err != nil {
//	    return err
//	}
//	for _, d := range manager.Devices() {
//	    fmt.Println(d.Base().DeviceName, d.Base().DeviceStatus)
//	}
package vesync
