package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
	"github.com/vesynchub/vesync-core/internal/infrastructure/influxdb"
)

// testConfig matches the local dev InfluxDB in docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "vesyncd-dev-token",
		Org:           "vesynchub",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func connectOrFail(t *testing.T, cfg config.InfluxDBConfig) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client := connectOrFail(t, testConfig())
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	if _, err := influxdb.Connect(cfg); err == nil {
		t.Fatal("Connect() should return error for unreachable server")
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)

	cfg := testConfig()
	cfg.BatchSize = 0
	cfg.FlushInterval = 0

	client := connectOrFail(t, cfg)
	if !client.IsConnected() {
		t.Error("IsConnected() = false with defaulted batch settings")
	}
}

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)

	client := connectOrFail(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	skipIfNoInfluxDB(t)

	client := connectOrFail(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// trackErrors registers an error callback and returns a getter for the
// last async write failure.
func trackErrors(client *influxdb.Client) func() error {
	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		return writeErr
	}
}

// The metric writers are fire-and-forget: each test queues a point,
// flushes, and checks no async error arrived.
func TestMetricWriters(t *testing.T) {
	skipIfNoInfluxDB(t)

	tests := []struct {
		name  string
		write func(c *influxdb.Client)
	}{
		{"device metric", func(c *influxdb.Client) {
			c.WriteDeviceMetric("cid-test-001", "ESW15-USA", "power_watts", 42.0)
		}},
		{"energy metric", func(c *influxdb.Client) {
			c.WriteEnergyMetric("cid-test-002", "week", 0.4, 12.34)
		}},
		{"poll metric", func(c *influxdb.Client) {
			c.WritePollMetric(1234.5, 12, 0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := connectOrFail(t, testConfig())
			lastErr := trackErrors(client)

			tt.write(client)
			client.Flush()
			time.Sleep(100 * time.Millisecond)

			if err := lastErr(); err != nil {
				t.Errorf("write error = %v", err)
			}
		})
	}
}

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Close must flush the point queued just before it.
	client.WriteDeviceMetric("cid-close-test", "ESW03-USA", "power_watts", 1.0)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
