package mqtt

import "fmt"

func TopicDeviceOnline(prefix string) string {
	return fmt.Sprintf("%s/device/+/online", prefix)
}

func TopicDeviceHeartbeat(prefix string) string {
	return fmt.Sprintf("%s/device/+/heartbeat", prefix)
}

func TopicDeviceLocation(prefix string) string {
	return fmt.Sprintf("%s/device/+/location", prefix)
}

// TopicSOS is where caregiver devices of userID listen for alerts.
func TopicSOS(prefix, userID string) string {
	return fmt.Sprintf("%s/user/%s/sos", prefix, userID)
}
