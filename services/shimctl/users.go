package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/shimmer-console/shimmer"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find users whose name contains term.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := a.console(shimmer.Options{})
			if err != nil {
				return err
			}
			defer console.Close()

			users, err := console.Selector.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tAUTHORIZATIONS")
			for _, user := range users {
				fmt.Fprintf(w, "%s\t%s\n", user.ID, strings.Join(user.Authorizations, ","))
			}
			return w.Flush()
		},
	}
}

func newAuthorizeCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "authorize <user> <shim>",
		Short: "Connect a user to a shim. The authorization page opens in the browser.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, shimName := args[0], args[1]
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			listener := shimmer.NewCallbackListener(a.service.CallbackAddr)
			if err := listener.Start(ctx); err != nil {
				return err
			}
			defer listener.Shutdown(context.Background())
			opener := shimmer.NewBrowserOpener(listener)
			if a.launch != nil {
				opener = opener.WithLauncher(a.launch)
			}

			console, err := a.console(shimmer.Options{Opener: opener})
			if err != nil {
				return err
			}
			defer console.Close()

			done := make(chan struct{})
			if err := console.Authorizer.Connect(ctx, userID, shimName, func() { close(done) }); err != nil {
				return err
			}
			select {
			case <-done:
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.Canceled) {
					return fmt.Errorf("authorization of %s for %s: %w", shimName, userID, shimmer.ErrUserCancelled)
				}
				return fmt.Errorf("authorization of %s for %s not completed: %w", shimName, userID, ctx.Err())
			}

			auths, err := console.Registry.RefreshAuthorizations(ctx, userID)
			if err != nil {
				return err
			}
			if !contains(auths, shimName) {
				return &exitError{code: 2, err: fmt.Errorf("%s has not authorized %s", userID, shimName)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s authorized %s\n", userID, shimName)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the authorization")
	return cmd
}

func newDeauthorizeCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "deauthorize <user> <shim>",
		Short: "Disconnect a user from a shim.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, shimName := args[0], args[1]
			var confirmer shimmer.Confirmer = shimmer.TerminalConfirmer{In: a.in, Out: cmd.OutOrStdout()}
			if yes {
				confirmer = shimmer.AlwaysConfirm
			}
			console, err := a.console(shimmer.Options{
				Authorizer: []shimmer.AuthorizerOption{shimmer.WithConfirmer(confirmer)},
			})
			if err != nil {
				return err
			}
			defer console.Close()

			disconnected := false
			err = console.Authorizer.Disconnect(cmd.Context(), userID, shimName, func() { disconnected = true })
			if err != nil {
				return err
			}
			if disconnected {
				fmt.Fprintf(cmd.OutOrStdout(), "%s disconnected from %s\n", userID, shimName)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
