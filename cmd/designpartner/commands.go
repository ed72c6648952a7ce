package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/thebtf/designpartner/internal/coverage"
	"github.com/thebtf/designpartner/internal/export"
)

func newNewCmd(st *rootState) *cobra.Command {
	var begin bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a design session and print its identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(func(a *app) error {
				id, err := a.sessions.NewSession(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				if !begin {
					return nil
				}
				res, err := a.orch.Begin(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Prompt)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&begin, "begin", false, "also print the opening question")
	return cmd
}

func newTalkCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "talk [session-id]",
		Short: "Hold the design conversation on the terminal",
		Long: `Talk starts or resumes a session and alternates between the next
question and your answer until every topic is covered or input ends.
Wrap anything you want kept out of the document in <private>...</private>.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(func(a *app) error {
				ctx := cmd.Context()
				var id string
				if len(args) == 1 {
					id = args[0]
				} else {
					var err error
					if id, err = a.sessions.NewSession(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", id)
				}
				conv := newConsole(cmd.InOrStdin(), cmd.OutOrStdout())
				return a.orch.Run(ctx, id, conv)
			})
		},
	}
}

func newListCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withApp(func(a *app) error {
				list, err := a.sessions.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tTURNS\tVERSION\tUPDATED")
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.ID, s.Status, s.Turns, s.DocumentVersion, s.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newShowCmd(st *rootState) *cobra.Command {
	var transcript bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's progress and topic coverage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(func(a *app) error {
				sess, err := a.sessions.Snapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				reg := a.curriculum.Current()
				tracker := coverage.New(sess.Coverage.Clone(), reg, a.cfg.MaxProbes)
				p := tracker.Progress()

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:   %s\n", sess.ID)
				fmt.Fprintf(out, "Status:    %s (revision %d)\n", sess.Status, sess.Revision)
				fmt.Fprintf(out, "Document:  version %d, %d topics\n", sess.Document.Version, sess.Document.Len())
				fmt.Fprintf(out, "Coverage:  %d full, %d partial, %d parked of %d\n", p.Full, p.Partial, p.Parked, p.Total)
				if sess.CurrentTopic != "" {
					fmt.Fprintf(out, "Asking:    %s\n", sess.CurrentTopic)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\nTOPIC\tCOVERAGE\tPROBES\tVALUE")
				for _, t := range reg.All() {
					cov, probes := "-", 0
					if e, ok := sess.Coverage.Get(t.ID); ok {
						cov, probes = string(e.Completeness), e.Probes
					}
					val := ""
					if r, ok := sess.Document.Get(t.ID); ok {
						val = r.Value.String()
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, cov, probes, val)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				if transcript {
					fmt.Fprintln(out)
					for _, turn := range sess.Transcript {
						fmt.Fprintf(out, "%3d %-9s %s\n", turn.Seq, turn.Role, turn.Text)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&transcript, "transcript", false, "also print the transcript")
	return cmd
}

func newExportCmd(st *rootState) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Render the committed design document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return st.withApp(func(a *app) error {
				data, err := a.exporter.Export(cmd.Context(), args[0], f)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown, html or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newResetCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id> <topic>",
		Short: "Forget a topic's coverage so it is asked again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(func(a *app) error {
				res, err := a.orch.ResetTopic(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Prompt)
				return nil
			})
		},
	}
}

var errNotConfirmed = errors.New("refusing to delete without --force")

func newClearCmd(st *rootState) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Permanently delete a session and its document history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errNotConfirmed
			}
			return st.withApp(func(a *app) error {
				if err := a.sessions.Clear(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}
