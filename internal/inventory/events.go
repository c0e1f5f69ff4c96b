package inventory

// Event topics published by the Inventory module.
const (
	TopicDeviceCreated = "inventory.device.created"
	TopicDeviceUpdated = "inventory.device.updated"
	TopicDeviceRemoved = "inventory.device.removed"
)

// DeviceEvent is the payload for device lifecycle events.
type DeviceEvent struct {
	DeviceID int64  `json:"device_id"`
	IP       string `json:"ip"`
	Name     string `json:"name"`
	Manual   bool   `json:"manual"`
}
