package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/api"
	"github.com/spf13/cobra"
)

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Inspect and re-submit metric uploads that failed",
	Long: `The dashboard uploads a metrics sample every two seconds. Uploads that
fail are not shown while monitoring; they are kept in a local spool
(HDT_HOME/spool.db) so they can be listed and re-submitted later.`,
}

var spoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spooled samples",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		spool, err := internal.OpenSpool(a.cfg.SpoolPath())
		if err != nil {
			return err
		}
		defer func() { _ = spool.Close() }()

		entries, err := spool.List(cmd.Context())
		if err != nil {
			return err
		}
		displaySpool(cmd.OutOrStdout(), entries)
		return nil
	},
}

var spoolFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Re-submit spooled samples, removing each one that is accepted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		spool, err := internal.OpenSpool(a.cfg.SpoolPath())
		if err != nil {
			return err
		}
		defer func() { _ = spool.Close() }()

		entries, err := spool.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "Spool is empty")
			return nil
		}

		sent, err := flushSpool(cmd.Context(), spool, a.client, entries)
		var transport *internal.TransportError
		if errors.As(err, &transport) {
			internal.PrintWarning("Backend unreachable; stopped re-submitting: " + internal.UserMessage(err))
		} else if err != nil {
			return err
		}

		if pending := len(entries) - sent; pending > 0 {
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠ Re-submitted %d sample(s), %d still pending", sent, pending)))
		} else {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Re-submitted %d sample(s)", sent)))
		}
		return nil
	},
}

// flushSpool re-submits entries one step at a time and deletes the accepted
// ones. A rejected entry stays for the next flush; an unreachable backend
// stops the run.
func flushSpool(ctx context.Context, spool *internal.Spool, client *api.Client, entries []internal.SpoolEntry) (sent int, err error) {
	steps := make([]internal.ProgressStep, 0, len(entries))
	for _, e := range entries {
		steps = append(steps, internal.ProgressStep{
			Message: fmt.Sprintf("Re-submitting sample %d (session %d)", e.ID, e.SessionID),
			Fn: func() error {
				if err := client.SubmitPhysiological(ctx, e.SessionID, e.Sample); err != nil {
					var transport *internal.TransportError
					if errors.As(err, &transport) {
						return err
					}
					internal.LogWarn("Spool entry %d still failing: %v", e.ID, err)
					return nil
				}
				if err := spool.Delete(ctx, e.ID); err != nil {
					return err
				}
				sent++
				return nil
			},
		})
	}
	err = internal.ShowProgressWithSteps(ctx, steps)
	return sent, err
}

func displaySpool(out io.Writer, entries []internal.SpoolEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Spool is empty")
		return
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d spooled sample(s)", len(entries))))
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSESSION\tRECORDED\tSTRESS\tHEART\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%d\t%s\t%.0f\t%.0f\t%s\n",
			e.ID, e.SessionID, e.RecordedAt.Local().Format(time.DateTime), e.Sample.StressLevel, e.Sample.HeartRate, truncate(orDash(e.Error), 40))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(spoolCmd)
	spoolCmd.AddCommand(spoolListCmd, spoolFlushCmd)
}
