// Package main provides the designpartner command line: an HTTP worker for
// voice and UI front ends plus operator commands for sessions.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/designpartner/internal/config"
	"github.com/thebtf/designpartner/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootState struct {
	cfg       *config.Config
	logCloser io.Closer
	logLevel  string
}

func newRootCmd() *cobra.Command {
	st := &rootState{}
	root := &cobra.Command{
		Use:           "designpartner",
		Short:         "Conversational design partner that turns a product conversation into a design document",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.LogLevel = st.logLevel
			}
			st.logCloser, err = logging.Setup(logging.FromConfig(cfg))
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if st.logCloser != nil {
				return st.logCloser.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(st),
		newNewCmd(st),
		newTalkCmd(st),
		newListCmd(st),
		newShowCmd(st),
		newExportCmd(st),
		newResetCmd(st),
		newClearCmd(st),
	)
	return root
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func (st *rootState) withApp(fn func(a *app) error) error {
	a, err := newApp(st.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close app")
		}
	}()
	return fn(a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
