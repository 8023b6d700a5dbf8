package mqtt

import "fmt"

// Topic prefixes for the vesyncd MQTT surface.
//
// Device topics use the flat scheme: vesync/{category}/{cid} with an
// optional socket suffix for multi-socket devices (cid-1 for socket 1).
const (
	// TopicPrefix is the base for all vesyncd topics.
	TopicPrefix = "vesync"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "vesync/system"
)

// Topics provides builders for vesyncd MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("cid-abc123")
//	// Returns: "vesync/state/cid-abc123"
type Topics struct{}

// DeviceState returns the topic for a device's state snapshot. The
// poller publishes here (retained) after every polling cycle.
//
// Example: vesync/state/cid-abc123
func (Topics) DeviceState(deviceKey string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceKey)
}

// DeviceEnergy returns the topic for an outlet's energy readings.
//
// Example: vesync/energy/cid-abc123/week
func (Topics) DeviceEnergy(deviceKey, period string) string {
	return fmt.Sprintf("%s/energy/%s/%s", TopicPrefix, deviceKey, period)
}

// DeviceCommand returns the topic for inbound device commands. External
// integrations publish here; the poller applies the command on its next
// pass through the queue.
//
// Example: vesync/command/cid-abc123
func (Topics) DeviceCommand(deviceKey string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceKey)
}

// Discovery returns the topic for fleet discovery announcements,
// published (retained) whenever reconciliation adds or removes devices.
//
// Example: vesync/discovery
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery", TopicPrefix)
}

// SystemStatus returns the daemon status topic. Online/offline messages
// and the LWT are published here.
//
// Example: vesync/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all device state topics.
//
// Pattern: vesync/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllDeviceCommands returns a pattern matching all inbound commands.
//
// Pattern: vesync/command/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllDeviceEnergy returns a pattern matching all energy topics.
//
// Pattern: vesync/energy/+/+
func (Topics) AllDeviceEnergy() string {
	return fmt.Sprintf("%s/energy/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all vesyncd topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: vesync/#
func (Topics) AllTopics() string {
	return "vesync/#"
}
