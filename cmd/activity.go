package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/api"
	"github.com/spf13/cobra"
)

var (
	activityType      string
	activityApp       string
	activityTyping    int
	activityMouse     int
	activityFocus     float64
	activityBroadcast bool
)

const broadcastTimeout = 5 * time.Second

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Report work activity",
}

var activitySubmitCmd = &cobra.Command{
	Use:   "submit <session-id>",
	Short: "Submit one work activity reading for a session",
	Long: `Submit one work activity reading. Numeric readings left at -1 are
sent as null. With --broadcast the reading is also published on the
event channel so live dashboards watching the session see it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		sample := internal.ActivitySample{
			SessionID:       sessionID,
			ActivityType:    activityType,
			ApplicationName: activityApp,
		}
		if activityTyping >= 0 {
			sample.TypingSpeed = &activityTyping
		}
		if activityMouse >= 0 {
			sample.MouseMovements = &activityMouse
		}
		if activityFocus >= 0 {
			if activityFocus > 100 {
				return &internal.ValidationError{Field: "focus_score", Message: "must be within [0, 100]"}
			}
			sample.FocusScore = &activityFocus
		}

		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		if err := a.client.SubmitActivity(cmd.Context(), sample); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Activity recorded for session %d", sessionID)))

		if activityBroadcast {
			if err := broadcastActivity(cmd.Context(), a, sample); err != nil {
				internal.LogWarn("Activity broadcast failed: %v", err)
				fmt.Fprintln(out, warningStyle.Render("⚠ Not broadcast: "+internal.UserMessage(err)))
				return nil
			}
			fmt.Fprintln(out, successStyle.Render("✓ Activity broadcast to live viewers"))
		}
		return nil
	},
}

// broadcastActivity publishes one sample on a short-lived event channel.
// Closing the channel flushes the queued event before disconnecting.
func broadcastActivity(ctx context.Context, a *app, sample internal.ActivitySample) error {
	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()

	channel, err := a.client.Connect(ctx)
	if err != nil {
		return err
	}
	defer channel.Close()
	if err := waitConnected(ctx, channel); err != nil {
		return err
	}
	return a.client.PublishActivity(sample)
}

// waitConnected blocks until the channel is connected. The first failed
// attempt is returned rather than waiting out the backoff.
func waitConnected(ctx context.Context, channel *api.Channel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-channel.Events():
			if !ok {
				return errors.New("event channel closed")
			}
			switch ev.Type {
			case api.EventConnected:
				return nil
			case api.EventReconnecting:
				return ev.Err
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activitySubmitCmd)

	activitySubmitCmd.Flags().StringVar(&activityType, "type", "coding", "Activity type")
	activitySubmitCmd.Flags().StringVar(&activityApp, "app", "", "Application in focus")
	activitySubmitCmd.Flags().IntVar(&activityTyping, "typing-speed", -1, "Typing speed in words per minute")
	activitySubmitCmd.Flags().IntVar(&activityMouse, "mouse-movements", -1, "Mouse movements in the period")
	activitySubmitCmd.Flags().Float64Var(&activityFocus, "focus", -1, "Focus score (0-100)")
	activitySubmitCmd.Flags().BoolVar(&activityBroadcast, "broadcast", false, "Also publish the reading to live viewers")
}
