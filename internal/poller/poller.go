package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vesynchub/vesync-core/internal/history"
	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
	"github.com/vesynchub/vesync-core/internal/infrastructure/logging"
	"github.com/vesynchub/vesync-core/internal/infrastructure/mqtt"
	"github.com/vesynchub/vesync-core/internal/vesync"
)

// Login retry backoff bounds. The cloud rejects credentials permanently
// or is temporarily unreachable; retries back off towards the ceiling.
const (
	loginRetryInitial = 5 * time.Second
	loginRetryMax     = 5 * time.Minute
)

// Sentinel errors for poller operations.
var (
	ErrDeviceNotFound = errors.New("poller: device not found")
	ErrUnknownCommand = errors.New("poller: unknown command")
	ErrUnsupported    = errors.New("poller: command not supported by this device")
	ErrInvalidCommand = errors.New("poller: invalid command payload")
)

// Publisher is the MQTT surface the poller uses. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// MetricsWriter is the time-series surface the poller uses.
// Satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteDeviceMetric(deviceKey, deviceType, measurement string, value float64)
	WriteEnergyMetric(deviceKey, period string, energyKWh, totalKWh float64)
	WritePollMetric(durationMS float64, deviceCount, failures int)
}

// Broadcaster pushes events to connected WebSocket clients.
// Satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// WebSocket channels the poller broadcasts on.
const (
	ChannelStateChanged  = "device.state_changed"
	ChannelEnergyUpdated = "device.energy_updated"
	ChannelPollCompleted = "poll.completed"
)

// Deps holds the dependencies required by the poller.
// Manager and Logger are required; everything else is optional.
type Deps struct {
	Config    config.PollerConfig
	Manager   *vesync.Manager
	History   history.Repository
	MQTT      Publisher
	Metrics   MetricsWriter
	Broadcast Broadcaster
	Logger    *logging.Logger
}

// Poller owns the cloud refresh loop and serialises all Manager access.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use. The internal
//     mutex is the only path to the vesync Manager.
type Poller struct {
	cfg       config.PollerConfig
	repo      history.Repository
	mqtt      Publisher
	metrics   MetricsWriter
	broadcast Broadcaster
	log       *logging.Logger

	mu      sync.Mutex
	manager *vesync.Manager
}

// New creates a poller from its dependencies.
func New(deps Deps) (*Poller, error) {
	if deps.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Config.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	return &Poller{
		cfg:       deps.Config,
		manager:   deps.Manager,
		repo:      deps.History,
		mqtt:      deps.MQTT,
		metrics:   deps.Metrics,
		broadcast: deps.Broadcast,
		log:       deps.Logger,
	}, nil
}

// Run logs in, subscribes to the command topic, and polls at the
// configured interval until the context is cancelled.
//
// Login failures are retried with backoff: the cloud being unreachable
// at boot must not kill the daemon.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.loginWithRetry(ctx); err != nil {
		return err
	}

	p.subscribeCommands()

	// First pass immediately, then on the ticker.
	p.Poll(ctx)

	ticker := time.NewTicker(p.cfg.GetInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopping")
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// loginWithRetry authenticates the account, backing off between attempts
// until the context is cancelled.
func (p *Poller) loginWithRetry(ctx context.Context) error {
	delay := loginRetryInitial
	for {
		p.mu.Lock()
		err := p.manager.Login(ctx)
		p.mu.Unlock()
		if err == nil {
			p.log.Info("logged in to VeSync cloud")
			return nil
		}

		// Bad credentials never become good by waiting.
		if errors.Is(err, vesync.ErrLoginFailed) || errors.Is(err, vesync.ErrMissingCredentials) {
			return fmt.Errorf("vesync login: %w", err)
		}

		p.log.Warn("login failed, retrying", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > loginRetryMax {
			delay = loginRetryMax
		}
	}
}

// Poll runs one refresh cycle: cloud update, snapshot, persistence, and
// publication. Cycle failures are logged, not returned; the loop carries
// on at the next tick.
func (p *Poller) Poll(ctx context.Context) {
	start := time.Now()

	p.mu.Lock()
	err := p.manager.Update(ctx)
	if err == nil {
		p.manager.UpdateEnergy(ctx, false)
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	failures := 0
	if err != nil {
		failures = 1
		p.log.Error("device refresh failed", "error", err)
	}

	p.persist(ctx, snap)
	p.publish(snap)
	p.record(snap)

	if p.metrics != nil {
		p.metrics.WritePollMetric(float64(time.Since(start).Milliseconds()), len(snap.devices), failures)
	}
	if p.broadcast != nil {
		p.broadcast.Broadcast(ChannelPollCompleted, map[string]any{
			"device_count": len(snap.devices),
			"duration_ms":  time.Since(start).Milliseconds(),
			"failures":     failures,
		})
	}

	p.log.Debug("poll cycle complete",
		"devices", len(snap.devices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// ForceEnergyRefresh refreshes energy history on every metered outlet,
// bypassing the per-outlet throttle.
func (p *Poller) ForceEnergyRefresh(ctx context.Context) {
	p.mu.Lock()
	p.manager.UpdateEnergy(ctx, true)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, snap)
	p.publish(snap)
}

// Devices returns a snapshot of the current device collection.
func (p *Poller) Devices() []DeviceView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked().devices
}

// Device returns a snapshot of one device by its key string
// (cid, or cid-N for a sub-device socket).
func (p *Poller) Device(key string) (DeviceView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.deviceByKeyLocked(key)
	if d == nil {
		return DeviceView{}, false
	}
	return viewOf(d), true
}

// deviceByKeyLocked finds a device by its rendered key string.
// Callers must hold the poller lock.
func (p *Poller) deviceByKeyLocked(key string) vesync.Device {
	for _, d := range p.manager.Devices() {
		if d.Base().Key().String() == key {
			return d
		}
	}
	return nil
}

// persist writes the cycle's devices, state, and energy to the history
// repository.
func (p *Poller) persist(ctx context.Context, snap snapshot) {
	if p.repo == nil {
		return
	}

	rows := make([]history.DeviceRow, 0, len(snap.devices))
	for _, v := range snap.devices {
		rows = append(rows, history.DeviceRow{
			CID:          v.CID,
			SubDeviceNo:  v.SubDeviceNo,
			UUID:         v.UUID,
			MacID:        v.MacID,
			DeviceType:   v.DeviceType,
			DeviceName:   v.DeviceName,
			ConfigModule: v.ConfigModule,
			DeviceStatus: v.DeviceStatus,
			Connection:   v.ConnectionStatus,
			DeviceRegion: v.DeviceRegion,
			CurrentFirm:  v.CurrentFirmVersion,
			UpdatedAt:    snap.taken,
		})
	}
	if err := p.repo.SyncDevices(ctx, rows); err != nil {
		p.log.Warn("device sync to history failed", "error", err)
	}

	for _, v := range snap.devices {
		entry := history.StateEntry{
			CID:          v.CID,
			SubDeviceNo:  v.SubDeviceNo,
			DeviceStatus: v.DeviceStatus,
			Connection:   v.ConnectionStatus,
			Details:      v.Details,
			RecordedAt:   snap.taken,
		}
		if err := p.repo.RecordState(ctx, entry); err != nil {
			p.log.Warn("state history write failed", "cid", v.CID, "error", err)
		}
	}

	for _, e := range snap.energy {
		entry := history.EnergyEntry{
			CID:         e.CID,
			SubDeviceNo: e.SubDeviceNo,
			Period:      e.Period,
			EnergyKWH:   e.Energy,
			CostPerKWH:  e.CostPerKWH,
			MaxEnergy:   e.MaxEnergy,
			TotalEnergy: e.TotalEnergy,
			RecordedAt:  snap.taken,
		}
		if err := p.repo.RecordEnergy(ctx, entry); err != nil {
			p.log.Warn("energy history write failed", "cid", e.CID, "error", err)
		}
	}
}

// publish pushes the cycle to MQTT (retained) and the WebSocket hub.
func (p *Poller) publish(snap snapshot) {
	topics := mqtt.Topics{}

	if p.mqtt != nil && p.mqtt.IsConnected() {
		for _, v := range snap.devices {
			payload, err := json.Marshal(v)
			if err != nil {
				continue
			}
			if err := p.mqtt.PublishRetained(topics.DeviceState(v.Key), payload); err != nil {
				p.log.Warn("state publish failed", "key", v.Key, "error", err)
			}
		}

		for _, e := range snap.energy {
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := p.mqtt.PublishRetained(topics.DeviceEnergy(e.Key, e.Period), payload); err != nil {
				p.log.Warn("energy publish failed", "key", e.Key, "error", err)
			}
		}

		if payload, err := json.Marshal(discoveryPayload(snap)); err == nil {
			if err := p.mqtt.PublishRetained(topics.Discovery(), payload); err != nil {
				p.log.Warn("discovery publish failed", "error", err)
			}
		}
	}

	if p.broadcast != nil {
		for _, v := range snap.devices {
			p.broadcast.Broadcast(ChannelStateChanged, v)
		}
		for _, e := range snap.energy {
			p.broadcast.Broadcast(ChannelEnergyUpdated, e)
		}
	}
}

// discoveryPayload builds the retained fleet announcement: identity
// fields only, no state.
func discoveryPayload(snap snapshot) map[string]any {
	devices := make([]map[string]any, 0, len(snap.devices))
	for _, v := range snap.devices {
		devices = append(devices, map[string]any{
			"key":         v.Key,
			"cid":         v.CID,
			"device_type": v.DeviceType,
			"name":        v.DeviceName,
		})
	}
	return map[string]any{
		"devices":   devices,
		"timestamp": snap.taken.Format(time.RFC3339),
	}
}

// record writes per-device telemetry to the time-series store. Numeric
// and boolean detail fields become device_metrics points; energy windows
// become energy points.
func (p *Poller) record(snap snapshot) {
	if p.metrics == nil {
		return
	}

	for _, v := range snap.devices {
		for field, val := range v.Details {
			switch n := val.(type) {
			case float64:
				p.metrics.WriteDeviceMetric(v.Key, v.DeviceType, field, n)
			case int:
				p.metrics.WriteDeviceMetric(v.Key, v.DeviceType, field, float64(n))
			case bool:
				f := 0.0
				if n {
					f = 1.0
				}
				p.metrics.WriteDeviceMetric(v.Key, v.DeviceType, field, f)
			}
		}
	}

	for _, e := range snap.energy {
		p.metrics.WriteEnergyMetric(e.Key, e.Period, e.Energy, e.TotalEnergy)
	}
}
