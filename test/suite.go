package test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/relabs-tech/shimmer-console/core/client"
	"github.com/relabs-tech/shimmer-console/core/export"
	"github.com/relabs-tech/shimmer-console/shimmer"
)

// IntegrationTestSuite runs a console against a fresh ShimServer for every test. The shim
// server is reached over http, authorization windows are "shown" by following the
// authorization URL with an http client, which ends at the callback listener.
type IntegrationTestSuite struct {
	suite.Suite

	Server   *ShimServer
	Console  *shimmer.Console
	Charts   *RecordingCharter
	Exported *export.Filesystem

	ctx      context.Context
	cancel   context.CancelFunc
	srv      *httptest.Server
	listener *shimmer.CallbackListener
}

// RecordingCharter remembers every rendered measure
type RecordingCharter struct {
	Measures []string
	Bodies   []string
}

// Render implements shimmer.Charter
func (c *RecordingCharter) Render(ctx context.Context, body json.RawMessage, measure string, options shimmer.ChartOptions) error {
	c.Measures = append(c.Measures, measure)
	c.Bodies = append(c.Bodies, string(body))
	return nil
}

func (s *IntegrationTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.Server = NewShimServer()
	s.srv = httptest.NewServer(s.Server)

	s.listener = shimmer.NewCallbackListener("127.0.0.1:0")
	s.Require().NoError(s.listener.Start(s.ctx))

	exported, err := export.NewFilesystem(s.T().TempDir())
	s.Require().NoError(err)
	s.Exported = exported
	s.Charts = &RecordingCharter{}

	opener := shimmer.NewBrowserOpener(s.listener).WithLauncher(func(url string) error {
		res, err := http.Get(url)
		if err != nil {
			return err
		}
		return res.Body.Close()
	})
	s.Console = shimmer.NewConsole(client.NewWithURL(s.srv.URL), shimmer.Options{
		Opener:     opener,
		Authorizer: []shimmer.AuthorizerOption{shimmer.WithPollInterval(10 * time.Millisecond)},
		Charter:    s.Charts,
		Exporter:   s.Exported,
	})
}

func (s *IntegrationTestSuite) TearDownTest() {
	s.Console.Close()
	s.cancel()
	s.Require().NoError(s.listener.Shutdown(context.Background()))
	s.srv.Close()
}

// Ctx returns the context of the current test
func (s *IntegrationTestSuite) Ctx() context.Context {
	return s.ctx
}
