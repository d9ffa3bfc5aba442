package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/relabs-tech/shimmer-console/core/client"
	"github.com/relabs-tech/shimmer-console/core/export"
	"github.com/relabs-tech/shimmer-console/shimmer"
)

// Service holds the configuration for shimctl
//
// use SHIMMER_API_URL=http://localhost:8083 to talk to a local shim server
type Service struct {
	APIURL        string        `env:"SHIMMER_API_URL,default=http://localhost:8083" description:"base URL of the shim server"`
	APIToken      string        `env:"SHIMMER_API_TOKEN" description:"bearer token sent to the shim server"`
	APISecret     string        `env:"SHIMMER_API_SECRET" description:"HS256 secret used to mint a bearer token when no token is set"`
	CallbackAddr  string        `env:"SHIMMER_CALLBACK_ADDR,default=127.0.0.1:8765" description:"listen address for authorization redirects"`
	PollInterval  time.Duration `env:"SHIMMER_POLL_INTERVAL,default=1s" description:"how often an authorization window is probed"`
	ScreenWidth   int           `env:"SHIMMER_SCREEN_WIDTH,default=1920" description:"screen width used to center authorization windows"`
	ScreenHeight  int           `env:"SHIMMER_SCREEN_HEIGHT,default=1080" description:"screen height used to center authorization windows"`
	EndpointsFile string        `env:"SHIMMER_ENDPOINTS_FILE" description:"yaml file replacing the built-in endpoint table"`
	Export        string        `env:"SHIMMER_EXPORT" description:"directory or s3://bucket/prefix for exported payloads"`
	AWSRegion     string        `env:"SHIMMER_AWS_REGION" description:"region of the export bucket"`
	AWSAccessID   string        `env:"SHIMMER_AWS_ACCESS_ID" description:"access key id for the export bucket"`
	AWSAccessKey  string        `env:"SHIMMER_AWS_ACCESS_KEY" description:"secret access key for the export bucket"`
	LogLevel      string        `env:"LOG_LEVEL,default=info" description:"logrus level"`
}

// tokenLifetime is the validity of minted bearer tokens
const tokenLifetime = time.Hour

// loadService reads a .env file from the working directory, if any, and decodes the
// environment into a Service
func loadService() (*Service, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}
	service := &Service{}
	if err := envdecode.Decode(service); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	return service, nil
}

// Token returns the bearer token for the shim server. An explicit token wins over a
// token minted from the secret. Without both the token is empty.
func (s *Service) Token(now time.Time) (string, error) {
	if s.APIToken != "" || s.APISecret == "" {
		return s.APIToken, nil
	}
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    "shimctl",
		Subject:   "shimmer-console",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.APISecret))
}

// Client returns a client for the shim server
func (s *Service) Client(now time.Time) (client.Client, error) {
	token, err := s.Token(now)
	if err != nil {
		return client.Client{}, err
	}
	return client.NewWithURL(s.APIURL).WithToken(token), nil
}

// Endpoints returns the endpoint table, either the built-in one or the one from EndpointsFile
func (s *Service) Endpoints() (*shimmer.EndpointTable, error) {
	if s.EndpointsFile == "" {
		return shimmer.DefaultEndpointTable(), nil
	}
	return shimmer.LoadEndpointFile(s.EndpointsFile)
}

// Exporter returns the export driver for target, or nil if target is empty
func (s *Service) Exporter(ctx context.Context, target string) (export.Driver, error) {
	config, err := export.ParseTarget(target, export.S3Configuration{
		AWSRegion: s.AWSRegion,
		AccessID:  s.AWSAccessID,
		AccessKey: s.AWSAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return export.New(ctx, config)
}

// Screen returns the configured screen size
func (s *Service) Screen() shimmer.Screen {
	return shimmer.Screen{Width: s.ScreenWidth, Height: s.ScreenHeight}
}
