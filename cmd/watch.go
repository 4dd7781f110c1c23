package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/api"
	"github.com/spf13/cobra"
)

var watchLimit int

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Print a session's live events",
	Long: `Connect to the event channel, subscribe to a session and print every
event as it arrives. Runs until interrupted, or until --limit events from
the backend have been printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		channel, err := a.client.Connect(ctx)
		if err != nil {
			return err
		}
		defer channel.Close()
		a.client.SubscribeSession(sessionID)

		out := cmd.OutOrStdout()
		received := 0
		show := func(ev api.Event) {
			fmt.Fprintf(out, "%s %s\n", dimStyle.Render(time.Now().Format(time.TimeOnly)), describeEvent(ev))
			if watchLimit > 0 && fromBackend(ev) {
				if received++; received >= watchLimit {
					cancel()
				}
			}
		}
		watchDispatcher(sessionID, show).Run(ctx, channel.Events())
		return nil
	},
}

// watchDispatcher prints every event and logs connection changes and
// malformed payloads
func watchDispatcher(sessionID int, show api.Handler) *api.Dispatcher {
	return api.NewDispatcher().
		On(api.EventConnected, func(api.Event) {
			internal.LogInfo("Watching session %d", sessionID)
		}).
		On(api.EventConnected, show).
		On(api.EventDisconnected, func(ev api.Event) {
			internal.LogWarn("Event channel lost: %v", ev.Err)
		}).
		On(api.EventDisconnected, show).
		On(api.EventReconnecting, func(ev api.Event) {
			internal.LogDebug("Reconnect attempt %d failed: %v", ev.Attempt, ev.Err)
		}).
		On(api.EventReconnecting, show).
		On(api.EventInvalid, func(ev api.Event) {
			internal.LogWarn("Malformed %s event: %v", ev.Name, ev.Err)
		}).
		On(api.EventInvalid, show).
		Otherwise(show)
}

func fromBackend(ev api.Event) bool {
	switch ev.Type {
	case api.EventConnected, api.EventDisconnected, api.EventReconnecting:
		return false
	}
	return true
}

// describeEvent renders one event as a single line
func describeEvent(ev api.Event) string {
	switch ev.Type {
	case api.EventConnected:
		return successStyle.Render("connected")
	case api.EventDisconnected:
		return warningStyle.Render("disconnected")
	case api.EventReconnecting:
		return warningStyle.Render(fmt.Sprintf("reconnecting (attempt %d, in %s)", ev.Attempt, ev.Delay.Round(time.Millisecond)))
	case api.EventConnectionResponse:
		return infoStyle.Render("connection_response") + " status=" + ev.Status
	case api.EventSubscriptionConfirmed:
		return infoStyle.Render("subscription_confirmed") + fmt.Sprintf(" session=%d", ev.SessionID)
	case api.EventPhysiologicalData:
		s := ev.Physiological.Sample()
		return fmt.Sprintf("%s session=%d hr=%.0f stress=%.0f (%s) cognitive=%.0f fatigue=%.0f posture=%.0f",
			infoStyle.Render("physiological_data"), ev.SessionID,
			s.HeartRate, s.StressLevel, internal.ClassifyStress(s.StressLevel), s.CognitiveLoad, s.FatigueScore, s.PostureScore)
	case api.EventActivityData:
		parts := []string{infoStyle.Render("activity_data"), fmt.Sprintf("session=%d", ev.SessionID)}
		if act := ev.Activity; act != nil {
			if act.ActivityType != "" {
				parts = append(parts, "type="+act.ActivityType)
			}
			if act.ApplicationName != "" {
				parts = append(parts, "app="+act.ApplicationName)
			}
			if act.TypingSpeed != nil {
				parts = append(parts, fmt.Sprintf("typing=%d", *act.TypingSpeed))
			}
		}
		return strings.Join(parts, " ")
	case api.EventInvalid:
		return errorStyle.Render(ev.Name) + " invalid: " + ev.Err.Error()
	}
	return dimStyle.Render(ev.Name) + " " + string(ev.Raw)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVarP(&watchLimit, "limit", "n", 0, "Stop after this many backend events (0 runs until interrupted)")
}
