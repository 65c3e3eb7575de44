package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	// Set default values
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("pull.transport", "tcp")
	v.SetDefault("pull.max_delay", 100*time.Millisecond)
	v.SetDefault("push.restart_delay", 3000*time.Millisecond)
	v.SetDefault("push.grace_period", 1000*time.Millisecond)
	v.SetDefault("push.start_timeout", 3000*time.Millisecond)
	v.SetDefault("server.port", 29888)

	// Environment variables, e.g. RTSPTOOL_PULL_TRANSPORT
	v.SetEnvPrefix("rtsptool")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("ffmpeg.path", "RTSPTOOL_FFMPEG_PATH", "FFMPEG_PATH")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths := []string{
		".",
		filepath.Join(xdg.ConfigHome, "rtsptool"),
		"/etc/rtsptool",
	}
	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
	}
}

// ConfigFileUsed returns the config file that was loaded, if any.
func ConfigFileUsed() string {
	return v.ConfigFileUsed()
}

// GetFFmpegPath returns the ffmpeg binary used for pushing
func GetFFmpegPath() string {
	return v.GetString("ffmpeg.path")
}

// GetPullTransport returns the default RTSP transport for pulling
func GetPullTransport() string {
	return v.GetString("pull.transport")
}

// GetPullMaxDelay returns the demuxer reorder delay
func GetPullMaxDelay() time.Duration {
	return v.GetDuration("pull.max_delay")
}

func GetPushRestartDelay() time.Duration {
	return v.GetDuration("push.restart_delay")
}

func GetPushGracePeriod() time.Duration {
	return v.GetDuration("push.grace_period")
}

func GetPushStartTimeout() time.Duration {
	return v.GetDuration("push.start_timeout")
}

// GetServerPort returns the port of the control API
func GetServerPort() int {
	return v.GetInt("server.port")
}
