package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/loregraph/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve resolve, verify and reindex over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, err := a.open(ctx)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			s := server.NewServer(g, a.cfg.Server.ResultRetention, a.logger)
			runErr := s.Run(ctx, addr)

			closeErr := g.Close()
			<-s.Done()
			if runErr != nil {
				return runErr
			}
			return closeErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
