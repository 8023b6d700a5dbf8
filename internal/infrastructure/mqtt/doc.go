// Package mqtt connects vesyncd to the local broker.
//
// The daemon mirrors the VeSync cloud onto MQTT so home automation
// systems can consume device state without talking to the cloud
// themselves: the poller publishes retained snapshots on vesync/state/+
// after every cycle and accepts commands on vesync/command/+. The
// client reconnects automatically, replays subscriptions after a
// reconnect, and keeps a retained online/offline status (with an LWT
// for crashes) on vesync/system/status.
//
//	client, err := mqtt.Connect(cfg.MQTT, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return applyCommand(topic, payload)
//	    })
//
//	client.PublishRetained(mqtt.Topics{}.DeviceState("cid-abc123"),
//	    []byte(`{"device_status":"on"}`))
package mqtt
