package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"oas-testgen/internal/server"
	"oas-testgen/internal/storage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning, execution and file API over HTTP",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, generationKeys); err != nil {
				return err
			}
			return bindFlags(cmd, map[string]string{"addr": "server.addr"})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := storage.NewStore(rt.cfg.Storage.UploadDir, rt.cfg.Storage.DownloadDir, rt.log)
			if err != nil {
				return err
			}
			watcher, err := storage.NewWatcher(store)
			if err != nil {
				return err
			}

			srv := server.New(rt.cfg, rt.pipeline, store, rt.log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return watcher.Run(ctx) })
			g.Go(func() error { return srv.ListenAndServe(ctx) })
			return g.Wait()
		},
	}

	addGenerationFlags(cmd)
	cmd.Flags().String("addr", "", "listen address (default :9081)")
	return cmd
}

