// Command shimctl is the operator console for an Open mHealth shim server. It lists shims
// and their configuration, finds users, connects and disconnects users from shims and
// fetches their data.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/relabs-tech/shimmer-console/shimmer"
)

func main() {
	code := runMain(Execute, os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

// Execute runs the root command until it returns or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func runMain(execute func() error, stderr io.Writer) int {
	if err := execute(); err != nil {
		return exitCodeForError(err, stderr)
	}
	return 0
}

func exitCodeForError(err error, stderr io.Writer) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			fmt.Fprintln(stderr, ee)
		}
		return ee.code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, shimmer.ErrUserCancelled) {
		fmt.Fprintln(stderr, "canceled")
		return 130
	}
	fmt.Fprintln(stderr, err)
	return 1
}
