package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/designpartner/internal/curriculum"
)

func newServeCmd(st *rootState) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port > 0 {
				st.cfg.WorkerPort = port
			}
			return st.withApp(func(a *app) error {
				return serve(cmd.Context(), a)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

// serve runs the worker and the session sweeper until ctx is cancelled.
func serve(ctx context.Context, a *app) error {
	if a.cfg.WatchCurriculum {
		a.curriculum.SetOnReload(func(reg *curriculum.Registry) {
			log.Info().Int("topics", reg.Len()).Msg("New curriculum applies from the next turn")
		})
		if err := a.curriculum.Watch(); err != nil {
			return err
		}
	}
	if err := a.sessions.Start(); err != nil {
		return err
	}

	svc := a.service()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.sessions.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
