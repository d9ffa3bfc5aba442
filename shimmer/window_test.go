package shimmer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackListener_Complete(t *testing.T) {
	listener := NewCallbackListener("127.0.0.1:8765")
	var launched []string
	opener := NewBrowserOpener(listener).WithLauncher(func(url string) error {
		launched = append(launched, url)
		return nil
	})
	assert.Equal(t, "http://127.0.0.1:8765/authorization-complete/p1", opener.RedirectURL("p1"))

	window, err := opener.Open(context.Background(), Popup{ID: "p1", URL: "https://provider.example/oauth"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://provider.example/oauth"}, launched)
	closed, err := window.Closed()
	require.NoError(t, err)
	assert.False(t, closed)
	assert.NoError(t, window.Focus())

	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorization-complete/p1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization complete")
	closed, _ = window.Closed()
	assert.True(t, closed)

	// a second redirect for the same popup is unknown
	rec = httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorization-complete/p1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackListener_Failure(t *testing.T) {
	listener := NewCallbackListener("127.0.0.1:0")
	window := listener.expect("p2")

	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorization-complete/p2?errorState=failure", nil))
	assert.Contains(t, rec.Body.String(), "Authorization failed")
	closed, _ := window.Closed()
	assert.True(t, closed)
}

func TestCallbackListener_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := NewCallbackListener("127.0.0.1:0")
	require.NoError(t, listener.Start(ctx))
	defer listener.Shutdown(context.Background())

	url := listener.URL("p3")
	assert.False(t, strings.Contains(url, ":0/"))
	window := listener.expect("p3")

	res, err := http.Get(url)
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "you can close this window")
	closed, _ := window.Closed()
	assert.True(t, closed)
}

func TestBrowserOpener_LaunchFailure(t *testing.T) {
	listener := NewCallbackListener("127.0.0.1:0")
	opener := NewBrowserOpener(listener).WithLauncher(func(string) error {
		return errors.New("no browser")
	})
	_, err := opener.Open(context.Background(), Popup{ID: "p4", URL: "https://provider.example"})
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorization-complete/p4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerminalConfirmer(t *testing.T) {
	testCases := map[string]bool{
		"y\n":   true,
		"Yes\n": true,
		" yes":  true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	}
	for input, want := range testCases {
		var out bytes.Buffer
		c := TerminalConfirmer{In: strings.NewReader(input), Out: &out}
		assert.Equal(t, want, c.Confirm(DisconnectPrompt), "%q", input)
		assert.Equal(t, DisconnectPrompt+" [y/N] ", out.String())
	}
	assert.True(t, AlwaysConfirm.Confirm("?"))
	assert.False(t, NeverConfirm.Confirm("?"))
}

func TestSummaryCharter(t *testing.T) {
	var out bytes.Buffer
	c := SummaryCharter{Out: &out}
	require.NoError(t, c.Render(context.Background(), []byte(`[{"a":1},{"a":2}]`), "step_count", DefaultChartOptions()))
	require.NoError(t, c.Render(context.Background(), []byte(`{"a":1}`), "heart_rate", ChartOptions{
		Measures: map[string]MeasureOptions{"heart_rate": {Thresholds: map[string]float64{"max": 180}}},
	}))
	assert.Equal(t, "step_count: 2 data points\nheart_rate: 1 data points, max=180\n", out.String())
	assert.Error(t, c.Render(context.Background(), []byte(`"text"`), "x", ChartOptions{}))
}
