package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/shimmer-console/shimmer"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change shim configurations.",
	}
	cmd.AddCommand(newConfigGetCmd(a), newConfigSetCmd(a))
	return cmd
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <shim>",
		Short: "Print the settings and current values of a shim.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := a.console(shimmer.Options{})
			if err != nil {
				return err
			}
			defer console.Close()

			if err := console.Registry.RefreshConfigurations(cmd.Context()); err != nil {
				return err
			}
			configuration, ok := console.Registry.Configuration(args[0])
			if !ok {
				return fmt.Errorf("%w %s", shimmer.ErrUnknownShim, args[0])
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SETTING\tTYPE\tREQUIRED\tVALUE")
			for _, setting := range configuration.Settings {
				value := ""
				if v, ok := configuration.Value(setting.SettingID); ok {
					value = fmt.Sprint(v)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", setting.SettingID, setting.Type, yesNo(setting.Required), value)
			}
			return w.Flush()
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <shim> <setting=value>...",
		Short: "Change settings of a shim. Values are converted to the declared setting type.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			shimName := args[0]
			text := map[string]string{}
			for _, arg := range args[1:] {
				id, value, ok := strings.Cut(arg, "=")
				if !ok || id == "" {
					return fmt.Errorf("invalid assignment %q, expected setting=value", arg)
				}
				text[id] = value
			}

			console, err := a.console(shimmer.Options{})
			if err != nil {
				return err
			}
			defer console.Close()

			if err := console.Registry.RefreshConfigurations(ctx); err != nil {
				return err
			}
			configuration, ok := console.Registry.Configuration(shimName)
			if !ok {
				return fmt.Errorf("%w %s", shimmer.ErrUnknownShim, shimName)
			}
			values, err := shimmer.CoerceValues(configuration.Settings, text)
			if err != nil {
				return err
			}
			if err := console.Registry.SaveConfiguration(ctx, shimName, values); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration of %s saved\n", shimName)
			return nil
		},
	}
}

func newCredentialsCmd(a *app) *cobra.Command {
	var clientID, clientSecret string
	cmd := &cobra.Command{
		Use:   "credentials <shim>",
		Short: "Set the OAuth client credentials of a shim.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("--client-id and --client-secret are required")
			}
			console, err := a.console(shimmer.Options{})
			if err != nil {
				return err
			}
			defer console.Close()

			if err := console.Resources.UpdateClientCredentials(cmd.Context(), args[0], clientID, clientSecret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client credentials of %s updated\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret")
	return cmd
}
