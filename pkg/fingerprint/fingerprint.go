package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// IDLength is the length of every derived device identifier
const IDLength = 16

// DeviceInfo holds the attributes a client reports about the machine it runs on.
// Every field is optional.
type DeviceInfo struct {
	// Hardware identifiers
	MacAddress  string `json:"mac_address,omitempty"`
	ProcessorID string `json:"processor_id,omitempty"`
	MachineGUID string `json:"machine_guid,omitempty"`

	// System identifiers
	ComputerName string `json:"computer_name,omitempty"`
	UserName     string `json:"user_name,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`

	// Network identifiers
	LocalIP  string `json:"local_ip,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`

	// Browser/app identifiers, never part of the identifier
	UserAgent        string `json:"user_agent,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`

	DeviceName string `json:"device_name,omitempty"`
}

// qualifying is the canonical, order-stable projection that gets hashed.
// Field order here is the serialization order.
type qualifying struct {
	MacAddress   string `json:"mac"`
	ProcessorID  string `json:"cpu"`
	MachineGUID  string `json:"guid"`
	ComputerName string `json:"host"`
	UserName     string `json:"user"`
	OSVersion    string `json:"os"`
	LocalIP      string `json:"ip"`
	TimeZone     string `json:"tz"`
}

// Derive returns the device identifier for info.
// Only hardware, system and network fields take part, so two browsers on the
// same machine collapse into one identifier. Missing fields hash as empty strings.
func Derive(info DeviceInfo) string {
	q := qualifying{
		MacAddress:   strings.ToLower(strings.TrimSpace(info.MacAddress)),
		ProcessorID:  strings.TrimSpace(info.ProcessorID),
		MachineGUID:  strings.TrimSpace(info.MachineGUID),
		ComputerName: strings.TrimSpace(info.ComputerName),
		UserName:     strings.TrimSpace(info.UserName),
		OSVersion:    strings.TrimSpace(info.OSVersion),
		LocalIP:      strings.TrimSpace(info.LocalIP),
		TimeZone:     strings.TrimSpace(info.TimeZone),
	}

	// Marshaling a struct of strings cannot fail
	payload, _ := json.Marshal(q)
	sum := sha256.Sum256(payload)
	return base64.RawURLEncoding.EncodeToString(sum[:])[:IDLength]
}

// FromRequest extracts DeviceInfo from the X-* device headers of r
func FromRequest(r *http.Request) DeviceInfo {
	h := r.Header
	return DeviceInfo{
		MacAddress:       h.Get("X-Mac-Address"),
		ProcessorID:      h.Get("X-Processor-Id"),
		MachineGUID:      h.Get("X-Machine-Guid"),
		ComputerName:     h.Get("X-Computer-Name"),
		UserName:         h.Get("X-User-Name"),
		OSVersion:        h.Get("X-OS-Version"),
		LocalIP:          LocalIP(r),
		TimeZone:         h.Get("X-Timezone"),
		UserAgent:        r.UserAgent(),
		ScreenResolution: h.Get("X-Screen-Resolution"),
		DeviceName:       h.Get("X-Device-Name"),
	}
}

// LocalIP picks the first available client-side address hint, falling back to
// the connection's remote address
func LocalIP(r *http.Request) string {
	for _, header := range []string{"X-Local-IP", "X-Client-IP", "X-Forwarded-For", "X-Real-IP"} {
		if v := r.Header.Get(header); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Merge prefers client-reported info and falls back to what the request carried
func Merge(reported *DeviceInfo, fromRequest DeviceInfo) DeviceInfo {
	if reported == nil {
		return fromRequest
	}
	merged := *reported
	if merged.UserAgent == "" {
		merged.UserAgent = fromRequest.UserAgent
	}
	return merged
}

// DisplayName is the user-facing name for a device
func DisplayName(info DeviceInfo) string {
	if name := strings.TrimSpace(info.DeviceName); name != "" {
		return name
	}
	if name := strings.TrimSpace(info.ComputerName); name != "" {
		return name
	}
	return "Unknown Device"
}
