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
	healthcheckVerbose bool
	healthcheckTimeout time.Duration
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that hdt-console can reach and use the backend",
	Long: `Check the health of hdt-console by verifying:
  • Configuration
  • Backend health endpoint and database
  • Stored credentials and token expiry
  • Authenticated access
  • Event channel connectivity
  • Pending spooled uploads

This command is useful for debugging connectivity issues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 HDT Console Health Check"))
		fmt.Fprintln(out)

		// Step 1: Configuration
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		a, err := newApp()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Invalid configuration:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   API:    %s\n", a.cfg.APIURL)
			fmt.Fprintf(out, "   Events: %s\n", a.cfg.WSURL)
			fmt.Fprintf(out, "   Assets: %s\n", a.cfg.AssetBase)
			fmt.Fprintf(out, "   Home:   %s\n", a.cfg.Home)
		}
		fmt.Fprintln(out)

		// Step 2: Backend health
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking backend health..."))
		ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckTimeout)
		defer cancel()
		health, err := a.client.Health(ctx)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Backend unhealthy or unreachable:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Backend %s (database %s)", health.Status, health.Database)))
		fmt.Fprintln(out)

		// Step 3: Credentials
		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking stored credentials..."))
		loggedIn := a.client.Authenticated()
		if !loggedIn {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Not logged in"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Expected token in %s\n", a.cfg.CredentialsPath())
			}
		} else if exp, err := internal.TokenExpiry(a.client.Token()); err != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Stored token is unreadable:"), err)
		} else if time.Now().After(exp) {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Stored token expired at "+exp.Local().Format(time.DateTime)))
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Token valid until "+exp.Local().Format(time.DateTime)))
		}
		fmt.Fprintln(out)

		// Step 4: Authenticated access
		authOK := false
		if loggedIn {
			fmt.Fprintln(out, infoStyle.Render("Step 4: Testing authenticated access..."))
			user, err := a.client.CurrentUser(ctx)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("❌ Authenticated request failed:"), err)
			} else {
				authOK = true
				fmt.Fprintln(out, successStyle.Render("✅ Authenticated as "+user.Username))
			}
			fmt.Fprintln(out)
		}

		// Step 5: Event channel
		channelOK := false
		if authOK {
			fmt.Fprintln(out, infoStyle.Render("Step 5: Connecting to the event channel..."))
			if err := checkChannel(ctx, a.cfg.WSURL, a.client.Token()); err != nil {
				fmt.Fprintln(out, warningStyle.Render("⚠️  Event channel unavailable:"), err)
			} else {
				channelOK = true
				fmt.Fprintln(out, successStyle.Render("✅ Event channel connected"))
			}
			fmt.Fprintln(out)
		}

		// Step 6: Spool
		fmt.Fprintln(out, infoStyle.Render("Step 6: Checking the upload spool..."))
		pending := 0
		if spool, err := internal.OpenSpool(a.cfg.SpoolPath()); err != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Spool unavailable:"), err)
		} else {
			pending, err = spool.Count(ctx)
			_ = spool.Close()
			switch {
			case err != nil:
				fmt.Fprintln(out, warningStyle.Render("⚠️  Spool unreadable:"), err)
			case pending > 0:
				fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠️  %d failed upload(s) pending; run 'hdt-console spool flush'", pending)))
			default:
				fmt.Fprintln(out, successStyle.Render("✅ No pending uploads"))
			}
		}
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		switch {
		case authOK && channelOK:
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		case authOK:
			fmt.Fprintln(out, warningStyle.Render("⚠️  REST access works but live updates are unavailable"))
		default:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Backend reachable; log in to use monitoring"))
		}
		return nil
	},
}

// checkChannel dials the event channel and waits for the backend's greeting
func checkChannel(ctx context.Context, url, token string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := api.OpenChannel(ctx, api.ChannelConfig{URL: url, Token: token})
	defer ch.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch.Events():
			if !ok {
				return errors.New("channel closed")
			}
			switch ev.Type {
			case api.EventConnectionResponse:
				return nil
			case api.EventReconnecting:
				return ev.Err
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "details", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 10*time.Second, "Time allowed for the whole check")
}
