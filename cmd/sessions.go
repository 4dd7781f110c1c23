package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/iksnae/hdt-console/internal"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Start, end and list monitoring sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		sessions, err := a.client.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		displaySessions(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var sessionsStartCmd = &cobra.Command{
	Use:   "start <profile-id>",
	Short: "Start a monitoring session for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, err := parseID("profile_id", args[0])
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		s, err := a.client.StartSession(cmd.Context(), profileID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Session %d started", s.SessionID)))
		return nil
	},
}

var sessionsEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a monitoring session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		s, err := a.client.EndSession(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("✓ Session %d ended", s.SessionID)
		if s.SessionDuration != nil {
			msg += fmt.Sprintf(" after %ds", *s.SessionDuration)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(msg))
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <session-id>",
	Short: "Show the latest readings of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		state, err := a.client.CurrentState(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		displayState(cmd.OutOrStdout(), sessionID, state)
		return nil
	},
}

func displaySessions(out io.Writer, sessions []internal.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No sessions yet"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tPROFILE\tSTARTED\tENDED\tTASKS\tACTIVE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%s\n",
			s.SessionID, s.ProfileID, orDash(s.StartTime), orDash(s.EndTime), s.TotalTasksCompleted, strconv.FormatBool(s.IsActive))
	}
	_ = w.Flush()
}

func displayState(out io.Writer, sessionID int, state *internal.CurrentState) {
	fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Session %d", sessionID)))
	if p := state.Physiological; p != nil {
		s := p.Sample()
		band := internal.ClassifyStress(s.StressLevel)
		fmt.Fprintf(out, "Physiological %s\n", dimStyle.Render(orDash(p.Timestamp)))
		fmt.Fprintf(out, "  Heart rate:     %.0f bpm\n", s.HeartRate)
		fmt.Fprintf(out, "  Stress:         %.0f (%s)\n", s.StressLevel, band)
		fmt.Fprintf(out, "  Cognitive load: %.0f\n", s.CognitiveLoad)
		fmt.Fprintf(out, "  Fatigue:        %.0f\n", s.FatigueScore)
		fmt.Fprintf(out, "  Posture:        %.0f\n", s.PostureScore)
	} else {
		fmt.Fprintln(out, dimStyle.Render("No physiological readings"))
	}
	if act := state.Activity; act != nil {
		fmt.Fprintf(out, "Activity %s\n", dimStyle.Render(orDash(act.Timestamp)))
		fmt.Fprintf(out, "  Type:           %s\n", orDash(act.ActivityType))
		fmt.Fprintf(out, "  Application:    %s\n", orDash(act.ApplicationName))
		if act.TypingSpeed != nil {
			fmt.Fprintf(out, "  Typing speed:   %d wpm\n", *act.TypingSpeed)
		}
		if act.FocusScore != nil {
			fmt.Fprintf(out, "  Focus:          %.0f\n", *act.FocusScore)
		}
	} else {
		fmt.Fprintln(out, dimStyle.Render("No activity readings"))
	}
}

func init() {
	rootCmd.AddCommand(sessionsCmd, stateCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsStartCmd, sessionsEndCmd)
}
