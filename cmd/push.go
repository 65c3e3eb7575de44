package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rtsptool/rtsptool/config"
	"github.com/rtsptool/rtsptool/internal/push"
)

// NewPushCommand creates the push command
func NewPushCommand() *cobra.Command {
	var ffmpegPath string

	cmd := &cobra.Command{
		Use:   "push <input> <rtsp-output>",
		Short: "Restream a camera or a file to an RTSP server",
		Long: `Restream a capture device or a media file to an RTSP server with ffmpeg.

Inputs naming a camera (camera, cam, usb) or not pointing at an existing file are captured and
re-encoded; files are looped and copied. The ffmpeg process is restarted 3 seconds after it crashes.`,
		Example: `  rtsptool push 0 rtsp://localhost:8554/live
  rtsptool push ./clip.mp4 rtsp://localhost:8554/clip`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), args[0], args[1], ffmpegPath)
		},
	}

	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", config.GetFFmpegPath(), "Path to the ffmpeg binary")
	return cmd
}

func newSupervisor(ffmpegPath string) *push.Supervisor {
	return push.NewSupervisor(
		push.WithFFmpegPath(ffmpegPath),
		push.WithRestartDelay(config.GetPushRestartDelay()),
		push.WithGracePeriod(config.GetPushGracePeriod()),
		push.WithStartTimeout(config.GetPushStartTimeout()),
	)
}

func runPush(ctx context.Context, input, output, ffmpegPath string) error {
	sup := newSupervisor(ffmpegPath)
	defer sup.Close()

	if err := sup.StartPush(input, output); err != nil {
		return err
	}
	fmt.Printf("(Running in foreground. Press %s to stop.)\n", color.New(color.FgYellow, color.Bold).Sprint("Ctrl+C"))

	for {
		select {
		case <-ctx.Done():
			return sup.StopPush()
		case e := <-sup.Events():
			printPushEvent(e)
		}
	}
}

func printPushEvent(e push.Event) {
	switch e := e.(type) {
	case push.StatusEvent:
		switch {
		case e.Output:
			color.New(color.Faint).Println(e.Message)
		case e.Err != nil || e.State == push.StateExitedError:
			color.Red("%s", e.Message)
		case e.State == push.StateRunning:
			color.Green(e.Message)
		default:
			fmt.Println(e.Message)
		}
	case push.ResetRequiredEvent:
		color.Yellow("Push needs attention: %s", e.Reason)
	}
}
