package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/proteinchat/proteinchat-go/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [key=value...]",
		Short: "Serve chat sessions over HTTP",
		Args:  overrideArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, logger, err := opts.newApp(ctx, args)
			if err != nil {
				return err
			}
			if !opts.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			srv, err := server.New(app, logger)
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) == "" {
				addr = app.Config().Server.Addr
			}
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; defaults to server.addr")
	return cmd
}
