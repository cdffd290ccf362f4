// Package mqtt connects the manager to the local MQTT broker.
//
// The manager subscribes to the vehicle's deviceState and carParams
// messages and publishes managerState once per tick. A retained status
// message on onroad/manager/status reports online/offline, with the
// broker's Last Will covering crashes.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.DeviceState(), 1, handler)
package mqtt
