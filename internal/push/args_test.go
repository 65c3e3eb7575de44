package push

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgsDevice(t *testing.T) {
	args := BuildArgs(ClassDevice, "0", "rtsp://sink/live", "linux")

	want := "-hide_banner -loglevel warning -f v4l2 -i /dev/video0 -c:v libx264 -preset veryfast " +
		"-tune zerolatency -g 50 -r 25 -b:v 2000k -maxrate 2500k -bufsize 4000k -pix_fmt yuv420p " +
		"-c:a aac -b:a 128k -rtsp_transport tcp -reconnect 1 -reconnect_streamed 1 " +
		"-reconnect_delay_max 5 -rw_timeout 5000000 -f rtsp rtsp://sink/live"
	assert.Equal(t, want, strings.Join(args, " "))
}

func TestBuildArgsDeviceOutputOptions(t *testing.T) {
	args := BuildArgs(ClassDevice, "0", "rtsp://sink/live", "linux")

	input := indexOf(args, "-i")
	require.GreaterOrEqual(t, input, 0)
	for _, flag := range []string{"-reconnect", "-reconnect_streamed", "-reconnect_delay_max", "-rw_timeout"} {
		assert.Greater(t, indexOf(args, flag), input, "%s stays on the output side", flag)
	}
	assert.Equal(t, []string{"-f", "rtsp", "rtsp://sink/live"}, args[len(args)-3:])
}

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func TestBuildArgsFile(t *testing.T) {
	args := BuildArgs(ClassFile, "/media/my clip.mp4", "rtsp://sink/live", "linux")

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "warning",
		"-re", "-stream_loop", "-1", "-fflags", "+genpts",
		"-i", "/media/my clip.mp4",
		"-c", "copy", "-rtsp_transport", "tcp",
		"-f", "rtsp", "rtsp://sink/live",
	}, args)
}

func TestDeviceInputPerPlatform(t *testing.T) {
	tests := []struct {
		goos, input, format, want string
	}{
		{"linux", "2", "v4l2", "/dev/video2"},
		{"linux", "/dev/video1", "v4l2", "/dev/video1"},
		{"windows", "Integrated Camera", "dshow", "video=Integrated Camera"},
		{"windows", "video=USB Cam", "dshow", "video=USB Cam"},
		{"darwin", "0", "avfoundation", "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.format, CaptureFormat(tt.goos))
		assert.Equal(t, tt.want, DeviceInput(tt.input, tt.goos), tt.goos+" "+tt.input)
	}
}
