package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rtsptool/rtsptool/config"
	"github.com/rtsptool/rtsptool/internal/server"
	"github.com/rtsptool/rtsptool/internal/util"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		port int
		open bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API and event feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, open)
		},
	}

	cmd.Flags().IntVar(&port, "port", config.GetServerPort(), "Server port")
	cmd.Flags().BoolVar(&open, "open", false, "Open the pull status page in a browser")
	return cmd
}

func runServe(ctx context.Context, port int, open bool) error {
	logger := util.GetLogger()

	worker := newWorker()
	sup := newSupervisor(config.GetFFmpegPath())
	srv := server.NewServer(port, worker, sup)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return srv.ForwardIngest(ctx, worker.Events()) })
	g.Go(func() error { return srv.ForwardPush(ctx, sup.Events()) })

	fmt.Printf("Control API listening at %s\n", color.CyanString(srv.URL()))
	if open {
		if err := browser.OpenURL(srv.URL() + "/api/pull/status"); err != nil {
			logger.Warn("Failed to open browser", "error", err)
		}
	}

	err := g.Wait()
	worker.Close()
	sup.Close()
	return err
}
