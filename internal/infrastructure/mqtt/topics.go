package mqtt

// Topic prefixes for the manager's MQTT traffic.
const (
	// TopicPrefix is the root of every topic the manager uses.
	TopicPrefix = "onroad"

	// TopicPrefixVehicle carries vehicle-side messages consumed by the manager.
	TopicPrefixVehicle = TopicPrefix + "/vehicle"

	// TopicPrefixManager carries messages published by the manager.
	TopicPrefixManager = TopicPrefix + "/manager"
)

// Topics provides builders for the manager's MQTT topics.
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.DeviceState(), 1, handler)
type Topics struct{}

// DeviceState is the periodic device state message; its arrival drives the tick.
//
// Topic: onroad/vehicle/deviceState
func (Topics) DeviceState() string {
	return TopicPrefixVehicle + "/deviceState"
}

// CarParams is the latest vehicle identity message.
//
// Topic: onroad/vehicle/carParams
func (Topics) CarParams() string {
	return TopicPrefixVehicle + "/carParams"
}

// ManagerState is the per-tick process status message.
//
// Topic: onroad/manager/managerState
func (Topics) ManagerState() string {
	return TopicPrefixManager + "/managerState"
}

// ManagerStatus is the retained online/offline status, also used as the LWT.
//
// Topic: onroad/manager/status
func (Topics) ManagerStatus() string {
	return TopicPrefixManager + "/status"
}

// AllVehicle matches every vehicle-side topic.
//
// Pattern: onroad/vehicle/#
func (Topics) AllVehicle() string {
	return TopicPrefixVehicle + "/#"
}
