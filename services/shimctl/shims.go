package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/shimmer-console/core/logger"
	"github.com/relabs-tech/shimmer-console/shimmer"
)

func newShimsCmd(a *app) *cobra.Command {
	var available bool
	cmd := &cobra.Command{
		Use:   "shims",
		Short: "List the shims registered with the shim server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := a.console(shimmer.Options{})
			if err != nil {
				return err
			}
			defer console.Close()

			entries, err := console.Resources.ListRegistry(cmd.Context(), available)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SHIM\tLABEL\tENDPOINTS")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", entry.ShimKey, entry.Label, strings.Join(entry.Endpoints, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&available, "available", false, "list only shims with client credentials")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show schemas, configuration and authorization state of all shims.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console, err := a.console(shimmer.Options{})
			if err != nil {
				return err
			}
			defer console.Close()

			if err := console.Registry.Refresh(ctx); err != nil {
				return err
			}
			if userID != "" {
				if _, err := console.Registry.RefreshAuthorizations(ctx, userID); err != nil {
					return err
				}
			}
			if err := console.Endpoints.Validate(console.Registry.Names()); err != nil {
				logger.FromContext(ctx).Warn(err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if userID != "" {
				fmt.Fprintln(w, "SHIM\tSETTINGS\tSCHEMAS\tAUTHORIZED")
			} else {
				fmt.Fprintln(w, "SHIM\tSETTINGS\tSCHEMAS")
			}
			for _, shim := range console.Registry.Shims() {
				settings := 0
				if shim.Configuration != nil {
					settings = len(shim.Configuration.Settings)
				}
				schemas := make([]string, 0, len(shim.Schemas))
				for _, schema := range shim.Schemas {
					schemas = append(schemas, schema.String())
				}
				fmt.Fprintf(w, "%s\t%d\t%s", shim.Name, settings, strings.Join(schemas, ","))
				if userID != "" {
					fmt.Fprintf(w, "\t%s", yesNo(shim.Authenticated))
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "show which shims this user has authorized")
	return cmd
}

func newEndpointsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints [shim]",
		Short: "Print the table mapping schemas to data endpoints.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.service.Endpoints()
			if err != nil {
				return err
			}
			shims := table.Shims()
			if len(args) == 1 {
				shims = []string{args[0]}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SHIM\tSCHEMA\tENDPOINT")
			for _, shim := range shims {
				for _, entry := range table.Entries(shim) {
					fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Shim, entry.Schema, entry.Endpoint)
				}
			}
			return w.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
