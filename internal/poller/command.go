package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vesynchub/vesync-core/internal/infrastructure/mqtt"
	"github.com/vesynchub/vesync-core/internal/vesync"
)

// Command names accepted by Apply. The same vocabulary is used by the
// REST API and the vesync/command/{deviceKey} MQTT topic.
const (
	CmdPower          = "power"
	CmdBrightness     = "brightness"
	CmdColorTemp      = "color_temp"
	CmdMode           = "mode"
	CmdFanLevel       = "fan_level"
	CmdMistLevel      = "mist_level"
	CmdTargetHumidity = "target_humidity"
	CmdWarmLevel      = "warm_level"
)

// Command is one device instruction. Name selects the operation; the
// remaining fields carry the operation's argument.
type Command struct {
	Name   string `json:"command"`
	Status string `json:"status,omitempty"` // power: "on" or "off"
	Mode   string `json:"mode,omitempty"`   // mode: model-specific mode name
	Value  int    `json:"value,omitempty"`  // levels, brightness, humidity
}

// Apply executes a command against the device with the given key,
// serialised through the poller lock. On success the device's fresh
// state is published and broadcast.
//
// Returns:
//   - ErrDeviceNotFound: no device with that key
//   - ErrUnknownCommand: unrecognised command name
//   - ErrUnsupported: the device model lacks the operation
//   - ErrInvalidCommand: malformed argument (bad power status)
//   - vesync errors (ErrOutOfRange, ErrDeviceOffline, ...) pass through
func (p *Poller) Apply(ctx context.Context, key string, cmd Command) (DeviceView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev := p.deviceByKeyLocked(key)
	if dev == nil {
		return DeviceView{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}

	if err := dispatch(ctx, dev, cmd); err != nil {
		return DeviceView{}, err
	}

	view := viewOf(dev)
	p.publishDevice(view)
	return view, nil
}

// dispatch routes a command to the matching device operation. Optional
// capabilities are discovered by type assertion against the concrete
// model's methods.
func dispatch(ctx context.Context, dev vesync.Device, cmd Command) error {
	if !dev.Base().Online() {
		return fmt.Errorf("%w: %s", vesync.ErrDeviceOffline, dev.Base().Key())
	}

	switch cmd.Name {
	case CmdPower:
		if cmd.Status != vesync.StatusOn && cmd.Status != vesync.StatusOff {
			return fmt.Errorf("%w: power status must be %q or %q", ErrInvalidCommand, vesync.StatusOn, vesync.StatusOff)
		}
		return vesync.Toggle(ctx, dev, cmd.Status)

	case CmdBrightness:
		d, ok := dev.(interface {
			SetBrightness(context.Context, int) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetBrightness(ctx, cmd.Value)

	case CmdColorTemp:
		d, ok := dev.(interface {
			SetColorTemp(context.Context, int) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetColorTemp(ctx, cmd.Value)

	case CmdMode:
		d, ok := dev.(interface {
			SetMode(context.Context, string) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetMode(ctx, cmd.Mode)

	case CmdFanLevel:
		d, ok := dev.(interface {
			SetFanLevel(context.Context, int) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetFanLevel(ctx, cmd.Value)

	case CmdMistLevel:
		d, ok := dev.(interface {
			SetMistLevel(context.Context, int) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetMistLevel(ctx, cmd.Value)

	case CmdTargetHumidity:
		d, ok := dev.(interface {
			SetTargetHumidity(context.Context, int) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetTargetHumidity(ctx, cmd.Value)

	case CmdWarmLevel:
		d, ok := dev.(interface {
			SetWarmLevel(context.Context, int) error
		})
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, cmd.Name)
		}
		return d.SetWarmLevel(ctx, cmd.Value)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
}

// publishDevice pushes a single device's state to MQTT and the hub.
// Called after a successful command so subscribers see the change
// without waiting for the next poll cycle.
func (p *Poller) publishDevice(view DeviceView) {
	if p.mqtt != nil && p.mqtt.IsConnected() {
		if payload, err := json.Marshal(view); err == nil {
			topic := mqtt.Topics{}.DeviceState(view.Key)
			if err := p.mqtt.PublishRetained(topic, payload); err != nil {
				p.log.Warn("state publish failed", "key", view.Key, "error", err)
			}
		}
	}
	if p.broadcast != nil {
		p.broadcast.Broadcast(ChannelStateChanged, view)
	}
}

// subscribeCommands wires the inbound MQTT command topic to Apply.
func (p *Poller) subscribeCommands() {
	if p.mqtt == nil {
		return
	}

	topic := mqtt.Topics{}.AllDeviceCommands()
	err := p.mqtt.Subscribe(topic, 1, func(t string, payload []byte) error {
		key := strings.TrimPrefix(t, mqtt.TopicPrefix+"/command/")
		if key == "" || key == t {
			return nil
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			p.log.Warn("malformed command payload", "topic", t, "error", err)
			return nil
		}

		if _, err := p.Apply(context.Background(), key, cmd); err != nil {
			p.log.Warn("mqtt command failed", "key", key, "command", cmd.Name, "error", err)
		}
		return nil
	})
	if err != nil {
		p.log.Warn("command topic subscription failed", "topic", topic, "error", err)
	}
}
