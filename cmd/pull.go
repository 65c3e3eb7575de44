package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rtsptool/rtsptool/config"
	"github.com/rtsptool/rtsptool/internal/ingest"
	"github.com/rtsptool/rtsptool/internal/ingest/libav"
	"github.com/rtsptool/rtsptool/internal/recorder"
	"github.com/rtsptool/rtsptool/internal/util"
	"github.com/rtsptool/rtsptool/internal/version"
)

type pullOptions struct {
	transport     string
	audioOut      string
	snapshotDir   string
	snapshotEvery int
	duration      time.Duration
}

// NewPullCommand creates the pull command
func NewPullCommand() *cobra.Command {
	opts := &pullOptions{}

	cmd := &cobra.Command{
		Use:   "pull <rtsp-url>",
		Short: "Pull and decode an RTSP stream",
		Example: `  rtsptool pull rtsp://localhost:8554/mystream
  rtsptool pull --transport udp --audio-out audio.webm rtsp://camera.local/live`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd.Context(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.transport, "transport", config.GetPullTransport(), "RTSP transport, tcp or udp")
	flags.StringVar(&opts.audioOut, "audio-out", "", "Record decoded audio to this WebM file")
	flags.StringVar(&opts.snapshotDir, "snapshot-dir", "", "Write red-channel snapshots as PNG into this directory")
	flags.IntVar(&opts.snapshotEvery, "snapshot-every", 25, "Snapshot every Nth video frame")
	flags.DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")

	return cmd
}

func runPull(ctx context.Context, url string, opts *pullOptions) error {
	logger := util.GetLogger()

	transport, err := ingest.ParseTransport(opts.transport)
	if err != nil {
		return err
	}

	worker := newWorker()
	defer worker.Close()

	var audio *recorder.PCMWriter
	if opts.audioOut != "" {
		if audio, err = recorder.CreatePCMFile(opts.audioOut); err != nil {
			return err
		}
		defer audio.Close()
	}

	var snaps *recorder.Snapshotter
	if opts.snapshotDir != "" {
		if snaps, err = recorder.NewSnapshotter(opts.snapshotDir, opts.snapshotEvery); err != nil {
			return err
		}
	}

	if err := worker.Configure(url, transport); err != nil {
		return err
	}
	if err := worker.Start(); err != nil {
		return err
	}
	fmt.Printf("Pulling %s over %s\n", color.CyanString(url), transport)

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	live := term.IsTerminal(int(os.Stdout.Fd()))

	var sessionErr error
	for {
		select {
		case <-ctx.Done():
			worker.Stop()
			if live {
				fmt.Print("\r")
			}
			printPullStats(worker.Stats())
			return nil
		case <-ticker.C:
			if live {
				fmt.Print("\r" + formatPullStats(worker.Stats()) + "\033[K")
			} else {
				printPullStats(worker.Stats())
			}
		case e := <-worker.Events():
			switch e := e.(type) {
			case ingest.AudioChunkEvent:
				if audio != nil {
					if err := audio.WriteChunk(e.Chunk); err != nil {
						logger.Warn("Audio recording failed", "error", err)
						audio = nil
					}
				}
			case ingest.RedChannelFrameEvent:
				if snaps != nil {
					if path, err := snaps.Offer(e.Seq, e.Frame); err != nil {
						logger.Warn("Snapshot failed", "error", err)
					} else if path != "" {
						logger.Debug("Snapshot written", "path", path)
					}
				}
			case ingest.StreamErrorEvent:
				color.Red("Stream error: %s", e.Message())
				sessionErr = errors.Wrap(e.Err, e.Kind.String())
			case ingest.SessionEndedEvent:
				if live {
					fmt.Print("\r")
				}
				printPullStats(worker.Stats())
				fmt.Println("Session ended")
				return sessionErr
			}
		}
	}
}

func newWorker() *ingest.Worker {
	return ingest.NewWorker(libav.NewBackend(),
		ingest.WithMaxDelay(config.GetPullMaxDelay()),
		ingest.WithUserAgent(version.UserAgent()),
	)
}

func printPullStats(s ingest.Stats) {
	fmt.Println(formatPullStats(s))
}

func formatPullStats(s ingest.Stats) string {
	return fmt.Sprintf("%s video=%d audio=%d decode_errors=%d dropped=%d",
		color.New(color.Faint).Sprint(time.Now().Format("15:04:05")),
		s.VideoFrames, s.AudioChunks, s.DecodeErrors, s.DroppedPackets)
}
