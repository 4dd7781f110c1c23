package cmd

import (
	"fmt"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/api"
	"github.com/spf13/cobra"
)

var (
	authUsername string
	authEmail    string
	authPassword string
	authFullName string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Long: `Create an account on the backend and log in with it right away.
The token is stored in the state directory for later commands.

The password is read from --password, else prompted for (or read from stdin
when it is not a terminal).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		password := authPassword
		if password == "" {
			if password, err = readSecret(cmd, "Password: "); err != nil {
				return err
			}
		}
		user, err := a.client.RegisterAndLogin(cmd.Context(), api.RegisterRequest{
			Username: authUsername,
			Email:    authEmail,
			Password: password,
			FullName: authFullName,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Registered and logged in as %s", user.Username)))
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the auth token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		password := authPassword
		if password == "" {
			if password, err = readSecret(cmd, "Password: "); err != nil {
				return err
			}
		}
		user, err := a.client.Login(cmd.Context(), authUsername, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Logged in as %s", user.Username)))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored auth token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.client.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		user, err := a.client.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(user.Username))
		fmt.Fprintf(out, "  ID:      %d\n", user.UserID)
		fmt.Fprintf(out, "  Email:   %s\n", user.Email)
		if user.FullName != "" {
			fmt.Fprintf(out, "  Name:    %s\n", user.FullName)
		}
		if exp, err := internal.TokenExpiry(a.client.Token()); err != nil {
			internal.LogDebug("Token expiry unavailable: %v", err)
		} else {
			fmt.Fprintf(out, "  Token:   expires %s (%s)\n", exp.Local().Format(time.DateTime), expiresIn(exp))
		}
		return nil
	},
}

func expiresIn(exp time.Time) string {
	d := time.Until(exp).Round(time.Minute)
	if d <= 0 {
		return "expired"
	}
	return "in " + d.String()
}

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)

	registerCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Account username")
	registerCmd.Flags().StringVar(&authEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&authPassword, "password", "", "Account password (prompted when empty)")
	registerCmd.Flags().StringVar(&authFullName, "full-name", "", "Full name")

	loginCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Account username")
	loginCmd.Flags().StringVar(&authPassword, "password", "", "Account password (prompted when empty)")
}
