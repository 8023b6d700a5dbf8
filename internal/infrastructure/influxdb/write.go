package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// emit queues one point on the batched write API. Silently dropped when
// the client is closed, matching the fire-and-forget contract of the
// metric writers.
func (c *Client) emit(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// WriteDeviceMetric records one device telemetry reading, tagged by
// device key and model so dashboards can slice per device or per model.
//
//	client.WriteDeviceMetric("cid-abc123", "ESW15-USA", "power_watts", 23.0)
//	client.WriteDeviceMetric("cid-def456", "Classic300S", "humidity_pct", 45)
func (c *Client) WriteDeviceMetric(deviceKey, deviceType, measurement string, value float64) {
	c.emit("device_metrics",
		map[string]string{
			"device":      deviceKey,
			"device_type": deviceType,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		})
}

// WriteEnergyMetric records an outlet's energy reading for one history
// window (week, month, year): today's kWh plus the window total.
func (c *Client) WriteEnergyMetric(deviceKey, period string, energyKWh, totalKWh float64) {
	c.emit("energy",
		map[string]string{
			"device": deviceKey,
			"period": period,
		},
		map[string]interface{}{
			"energy_kwh": energyKWh,
			"total_kwh":  totalKWh,
		})
}

// WritePollMetric records one polling cycle: wall time, fleet size after
// reconciliation, and per-device update failures. Tracks cloud
// responsiveness over time.
func (c *Client) WritePollMetric(durationMS float64, deviceCount, failures int) {
	c.emit("poll_cycle",
		map[string]string{},
		map[string]interface{}{
			"duration_ms":  durationMS,
			"device_count": deviceCount,
			"failures":     failures,
		})
}
