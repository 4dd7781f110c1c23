package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/hdt-console/internal"
	"github.com/spf13/cobra"
)

var (
	profileRole        string
	profileDisplayName string
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the roles a twin can take and what each can do",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		roles, err := a.client.ListRoles(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, role := range internal.Roles {
			caps, ok := roles[role]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "%s %s\n", titleStyle.Render(role.Title()), dimStyle.Render("("+string(role)+")"))
			fmt.Fprintf(out, "  %s\n", caps.Description)
			fmt.Fprintf(out, "  Tasks: %s\n", strings.Join(caps.Tasks, ", "))
			for _, extra := range []struct {
				name  string
				items []string
			}{{"Languages", caps.Languages}, {"Tools", caps.Tools}, {"Focus", caps.Focus}} {
				if len(extra.items) > 0 {
					fmt.Fprintf(out, "  %s: %s\n", extra.name, strings.Join(extra.items, ", "))
				}
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage role profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		profiles, err := a.client.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		displayProfiles(cmd.OutOrStdout(), profiles)
		return nil
	},
}

var profilesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile for a role",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := internal.ParseRole(profileRole)
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		profile, err := a.client.CreateProfile(cmd.Context(), internal.CreateProfileRequest{
			RoleType:    role,
			DisplayName: profileDisplayName,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Created profile %d (%s)", profile.ProfileID, role.Title())))
		return nil
	},
}

func displayProfiles(out io.Writer, profiles []internal.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No profiles yet; create one with 'hdt-console profiles create --role <role>'"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tNAME\tCREATED")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", strconv.Itoa(p.ProfileID), p.RoleType, orDash(p.DisplayName), orDash(p.CreatedAt))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(rolesCmd, profilesCmd)
	profilesCmd.AddCommand(profilesListCmd, profilesCreateCmd)

	profilesCreateCmd.Flags().StringVarP(&profileRole, "role", "r", "", "Role: software_engineer, office_worker or factory_worker")
	profilesCreateCmd.Flags().StringVar(&profileDisplayName, "display-name", "", "Display name for the profile")
}
