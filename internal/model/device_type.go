package model

import "strings"

// DeviceType classifies the physical device behind a session
type DeviceType string

const (
	DeviceTypeComputer DeviceType = "Computer"
	DeviceTypeMobile   DeviceType = "Mobile"
	DeviceTypeTablet   DeviceType = "Tablet"
	DeviceTypeTV       DeviceType = "TV"
	DeviceTypeUnknown  DeviceType = "Unknown"
)

// ParseDeviceType maps a client supplied label onto a DeviceType, case-insensitively.
// Unrecognised labels are Unknown.
func ParseDeviceType(s string) DeviceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "computer", "desktop", "laptop", "pc":
		return DeviceTypeComputer
	case "mobile", "phone", "smartphone":
		return DeviceTypeMobile
	case "tablet":
		return DeviceTypeTablet
	case "tv", "smarttv", "smart tv":
		return DeviceTypeTV
	default:
		return DeviceTypeUnknown
	}
}

// InferDeviceType guesses the device type from a user agent
func InferDeviceType(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return DeviceTypeUnknown
	case containsAny(ua, "smart-tv", "smarttv", "googletv", "appletv", "tizen", "webos", "roku", "bravia"):
		return DeviceTypeTV
	case containsAny(ua, "ipad", "tablet") || (strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		return DeviceTypeTablet
	case containsAny(ua, "mobile", "iphone", "android"):
		return DeviceTypeMobile
	case containsAny(ua, "windows", "macintosh", "x11", "linux", "cros"):
		return DeviceTypeComputer
	default:
		return DeviceTypeUnknown
	}
}

// ResolveDeviceType prefers the explicit label and falls back to the user agent
func ResolveDeviceType(label, userAgent string) DeviceType {
	if t := ParseDeviceType(label); t != DeviceTypeUnknown {
		return t
	}
	return InferDeviceType(userAgent)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
