package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sc := a.Config.Server
			if addr != "" {
				sc.Addr = addr
			}

			srv := &http.Server{
				Addr:         sc.Addr,
				Handler:      a.Handler(),
				ReadTimeout:  sc.ReadTimeout,
				WriteTimeout: sc.WriteTimeout,
				BaseContext:  func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
			}

			errCh := make(chan error, 1)
			go func() {
				a.Logger.Info("listening", "addr", sc.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.Logger.Info("shutting down", "timeout", sc.ShutdownTimeout)

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sc.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}
