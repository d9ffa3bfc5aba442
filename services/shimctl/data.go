package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/shimmer-console/core/logger"
	"github.com/relabs-tech/shimmer-console/shimmer"
)

func newDataCmd(a *app) *cobra.Command {
	var (
		start, end, dateType, exportTarget string
		raw, chart                         bool
	)
	cmd := &cobra.Command{
		Use:   "data <user> <shim> <namespace:name>",
		Short: "Fetch data of a user from a shim and print it.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, shimName := args[0], args[1]
			key, err := shimmer.ParseSchemaKey(args[2])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("export") {
				exportTarget = a.service.Export
			}
			exporter, err := a.service.Exporter(ctx, exportTarget)
			if err != nil {
				return err
			}

			options := shimmer.Options{Exporter: exporter}
			if chart {
				options.Charter = shimmer.SummaryCharter{Out: cmd.ErrOrStderr()}
			}
			console, err := a.console(options)
			if err != nil {
				return err
			}
			defer console.Close()

			// the registry knows the schema versions, without it the version stays empty
			schema := shimmer.Schema{Namespace: key.Namespace, Name: key.Name}
			if err := console.Registry.RefreshSchemas(ctx); err == nil {
				if shim, ok := console.Registry.Shim(shimName); ok {
					if s, ok := shim.Schema(key); ok {
						schema = s
					}
				}
			}

			if err := console.Selector.Select(ctx, shimmer.User{ID: userID}); err != nil {
				return err
			}
			requests := console.Requests
			requests.SetShim(shimName)
			requests.SetSchema(schema)
			requests.SetNormalize(!raw)
			if err := requests.SetDateType(dateType); err != nil {
				return err
			}
			if start != "" {
				t, err := time.Parse(shimmer.DateFormat, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				requests.SetStartDate(t)
			}
			if end != "" {
				t, err := time.Parse(shimmer.DateFormat, end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				requests.SetEndDate(t)
			}

			result, err := requests.Execute(ctx)
			var inline *shimmer.InlineError
			if errors.As(err, &inline) {
				return &exitError{code: 2, err: inline}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if result.ExportLocation != "" {
				logger.FromContext(ctx).Infof("exported to %s", result.ExportLocation)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&start, "start", "", "first day, YYYY-MM-DD, defaults to two days ago")
	flags.StringVar(&end, "end", "", "last day, YYYY-MM-DD, defaults to tomorrow")
	flags.StringVar(&dateType, "date-type", shimmer.DateTypeEffectiveTimeframe, "effective_timeframe or creation_date")
	flags.BoolVar(&raw, "raw", false, "request the data as produced by the provider instead of normalized")
	flags.StringVar(&exportTarget, "export", "", "directory or s3://bucket/prefix to export the payload to, overrides SHIMMER_EXPORT")
	flags.BoolVar(&chart, "chart", false, "print a summary of the charted measure to stderr")
	return cmd
}
