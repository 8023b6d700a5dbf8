// Package influxdb stores vesyncd time-series telemetry: device
// readings (power, air quality, humidity), outlet energy windows, and
// polling cycle health.
//
// Built on the official influxdb-client-go v2 library. Writes are
// batched and non-blocking; async write failures reach the caller only
// through the SetOnError callback. Batch size and flush interval come
// from the influxdb section of config.yaml. The package is optional at
// runtime: when disabled in config, Connect returns ErrDisabled and the
// daemon runs without metrics.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("cid-abc123", "ESW15-USA", "power_watts", 12.5)
package influxdb
