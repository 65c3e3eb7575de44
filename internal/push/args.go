package push

import (
	"strconv"
	"strings"
)

// CaptureFormat returns the ffmpeg input device format for goos.
func CaptureFormat(goos string) string {
	switch goos {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	}
	return "v4l2"
}

// DeviceInput maps a bare device index to the form the capture format
// expects. Anything else is passed through.
func DeviceInput(input, goos string) string {
	switch goos {
	case "windows":
		if !strings.HasPrefix(input, "video=") {
			return "video=" + input
		}
	case "darwin":
		return input
	default:
		if _, err := strconv.Atoi(input); err == nil {
			return "/dev/video" + input
		}
	}
	return input
}

// BuildArgs returns the ffmpeg argument list for a job. The lists are an
// external contract and must not be reordered.
//
// In the device profile the -reconnect* and -rw_timeout flags follow -i, so
// ffmpeg applies them to the RTSP output, whose muxer ignores them. They are
// kept for argument compatibility only and do not make the capture or the
// publish reconnect.
func BuildArgs(class Classification, input, output, goos string) []string {
	if class == ClassFile {
		return []string{
			"-hide_banner", "-loglevel", "warning",
			"-re",
			"-stream_loop", "-1",
			"-fflags", "+genpts",
			"-i", input,
			"-c", "copy",
			"-rtsp_transport", "tcp",
			"-f", "rtsp", output,
		}
	}
	return []string{
		"-hide_banner", "-loglevel", "warning",
		"-f", CaptureFormat(goos),
		"-i", DeviceInput(input, goos),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-g", "50",
		"-r", "25",
		"-b:v", "2000k",
		"-maxrate", "2500k",
		"-bufsize", "4000k",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-rtsp_transport", "tcp",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-rw_timeout", "5000000",
		"-f", "rtsp", output,
	}
}
