package mqtt

import (
	"fmt"
	"strings"
)

// expected: {prefix}/device/{deviceId}/{kind}
func ParseDeviceID(topic, prefix string) (string, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) < len(prefixParts)+3 {
		return "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != "device" {
		return "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	id := parts[len(prefixParts)+1]
	if id == "" || id == "+" || id == "#" {
		return "", fmt.Errorf("invalid device id in topic: %s", topic)
	}
	return id, nil
}
