package push

import (
	"os"
	"strings"
)

var deviceMarkers = []string{"camera", "cam", "usb"}

// Classify treats an input as a capture device when its name carries a
// device marker or it is not an existing regular file. A file named
// camera.mp4 is therefore classified as a device.
func Classify(input string) Classification {
	lower := strings.ToLower(input)
	for _, m := range deviceMarkers {
		if strings.Contains(lower, m) {
			return ClassDevice
		}
	}
	fi, err := os.Stat(input)
	if err != nil || !fi.Mode().IsRegular() {
		return ClassDevice
	}
	return ClassFile
}
