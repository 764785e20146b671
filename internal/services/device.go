package services

import "strings"

// DeviceClass buckets a scan by the platform its User-Agent reports.
type DeviceClass string

const (
	DeviceAndroid DeviceClass = "android"
	DeviceIOS     DeviceClass = "ios"
	DeviceOther   DeviceClass = "other"
)

var iosMarkers = []string{"iphone", "ipad", "ipod", "ios"}

// ClassifyDevice maps a raw User-Agent to a DeviceClass. Matching is a
// case-insensitive substring test; android is checked first.
func ClassifyDevice(userAgent string) DeviceClass {
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "android") {
		return DeviceAndroid
	}
	for _, m := range iosMarkers {
		if strings.Contains(ua, m) {
			return DeviceIOS
		}
	}
	return DeviceOther
}
