package commands

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/singlebase/singlebase-go/cli/config"
)

func (a *App) newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage connection profiles",
		Long:  `Manage connection profiles stored in the config file. Each profile names an API URL and the keystore entry holding its access key.`,
	}

	var (
		p           config.Profile
		makeDefault bool
	)
	setCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a profile",
		Example: `  singlebase profile set prod --api-url https://cloud.singlebase.io/api/<tenant> --default
  singlebase profile set local --api-url http://localhost:8080 --timeout 5s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			merged := config.Profile{}
			if existing := a.cfg.GetProfile(name); existing != nil {
				merged = *existing
			}
			flags := cmd.Flags()
			// --api-url and --timeout are the global flags.
			if flags.Changed("api-url") {
				merged.APIURL = a.apiURL
			}
			if flags.Changed("api-key-ref") {
				merged.APIKeyRef = p.APIKeyRef
			}
			if flags.Changed("timeout") {
				merged.Timeout = a.timeout.String()
			}
			if flags.Changed("auth-header") {
				merged.AuthHeader = p.AuthHeader
			}
			if flags.Changed("auth-scheme") {
				merged.AuthScheme = p.AuthScheme
			}

			if err := validateProfile(merged); err != nil {
				return exitWithCode(ExitValidation, fmt.Errorf("profile %q: %w", name, err))
			}

			a.cfg.SetProfile(name, merged)
			if makeDefault || len(a.cfg.Profiles) == 1 {
				a.cfg.DefaultProfile = name
			}
			if err := config.SaveConfig(a.cfgPath, a.cfg); err != nil {
				return exitWithCode(ExitValidation, fmt.Errorf("failed to save config: %w", err))
			}

			fmt.Fprintf(a.stdout, "Profile %s saved to %s.\n", name, a.cfgPath)
			return nil
		},
	}
	setCmd.Flags().StringVar(&p.APIKeyRef, "api-key-ref", "", "keystore entry holding the access key (default: profile name)")
	setCmd.Flags().StringVar(&p.AuthHeader, "auth-header", "", "header carrying the access key")
	setCmd.Flags().StringVar(&p.AuthScheme, "auth-scheme", "", "scheme prefix for the auth header, e.g. Bearer")
	setCmd.Flags().BoolVar(&makeDefault, "default", false, "make this the default profile")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(a.cfg.Profiles))
			for name := range a.cfg.Profiles {
				names = append(names, name)
			}
			sort.Strings(names)

			if a.jsonOutput {
				return a.writeJSON(map[string]any{
					"default":  a.cfg.ProfileName(""),
					"profiles": a.cfg.Profiles,
				})
			}

			if len(names) == 0 {
				fmt.Fprintln(a.stdout, "No profiles configured.")
				return nil
			}

			active := a.cfg.ProfileName(a.profile)
			data := pterm.TableData{{"", "NAME", "API URL", "KEY REF", "TIMEOUT"}}
			for _, name := range names {
				prof := a.cfg.Profiles[name]
				mark := ""
				if name == active {
					mark = "*"
				}
				ref := prof.APIKeyRef
				if ref == "" {
					ref = name
				}
				data = append(data, []string{mark, name, prof.APIURL, ref, prof.Timeout})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, table)
			return nil
		},
	}

	useCmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Set the default profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if a.cfg.GetProfile(name) == nil {
				return exitWithCode(ExitValidation, fmt.Errorf("profile %q not found", name))
			}
			a.cfg.DefaultProfile = name
			if err := config.SaveConfig(a.cfgPath, a.cfg); err != nil {
				return exitWithCode(ExitValidation, fmt.Errorf("failed to save config: %w", err))
			}
			fmt.Fprintf(a.stdout, "Default profile is now %s.\n", name)
			return nil
		},
	}

	profileCmd.AddCommand(setCmd, listCmd, useCmd)
	return profileCmd
}

func validateProfile(p config.Profile) error {
	if p.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.Parse(p.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_url %q: want an http(s) URL", p.APIURL)
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid timeout %q", p.Timeout)
		}
	}
	return nil
}
