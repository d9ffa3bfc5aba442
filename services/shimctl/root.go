package main

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/shimmer-console/core/logger"
	"github.com/relabs-tech/shimmer-console/shimmer"
)

// app is the state shared by all commands
type app struct {
	service *Service
	in      io.Reader
	now     func() time.Time
	// launch shows authorization URLs, nil uses the system browser
	launch func(url string) error

	apiURL    string
	token     string
	logLevel  string
	endpoints string
}

var rootCmd = newRootCmd(&app{in: os.Stdin, now: time.Now})

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shimctl",
		Short:         "shimctl manages users, authorizations and configurations of a shim server.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "base URL of the shim server, overrides SHIMMER_API_URL")
	flags.StringVar(&a.token, "token", "", "bearer token, overrides SHIMMER_API_TOKEN")
	flags.StringVar(&a.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	flags.StringVar(&a.endpoints, "endpoints", "", "endpoint table file, overrides SHIMMER_ENDPOINTS_FILE")

	cmd.AddCommand(
		newShimsCmd(a),
		newStatusCmd(a),
		newEndpointsCmd(a),
		newSearchCmd(a),
		newAuthorizeCmd(a),
		newDeauthorizeCmd(a),
		newConfigCmd(a),
		newCredentialsCmd(a),
		newDataCmd(a),
	)
	return cmd
}

// setup loads the service configuration unless it is preset and applies the flags
func (a *app) setup(cmd *cobra.Command) error {
	if a.service == nil {
		service, err := loadService()
		if err != nil {
			return err
		}
		a.service = service
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		a.service.APIURL = a.apiURL
	}
	if flags.Changed("token") {
		a.service.APIToken = a.token
	}
	if flags.Changed("log-level") {
		a.service.LogLevel = a.logLevel
	}
	if flags.Changed("endpoints") {
		a.service.EndpointsFile = a.endpoints
	}
	logger.InitLogger(logger.ParseLevel(a.service.LogLevel))
	return nil
}

// console returns a console for the configured shim server
func (a *app) console(options shimmer.Options) (*shimmer.Console, error) {
	cl, err := a.service.Client(a.now())
	if err != nil {
		return nil, err
	}
	endpoints, err := a.service.Endpoints()
	if err != nil {
		return nil, err
	}
	options.Endpoints = endpoints
	options.Authorizer = append(options.Authorizer,
		shimmer.WithPollInterval(a.service.PollInterval),
		shimmer.WithScreen(a.service.Screen()),
	)
	return shimmer.NewConsole(cl, options), nil
}
