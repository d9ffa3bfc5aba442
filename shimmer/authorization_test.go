package shimmer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu     sync.Mutex
	closed bool
	err    error
	probes int
}

func (w *fakeWindow) Closed() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.probes++
	return w.closed, w.err
}

func (w *fakeWindow) Focus() error { return nil }

func (w *fakeWindow) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.err = nil
}

type fakeOpener struct {
	mu      sync.Mutex
	popups  []Popup
	windows []*fakeWindow
	err     error
}

func (o *fakeOpener) Open(ctx context.Context, popup Popup) (Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	w := &fakeWindow{}
	o.popups = append(o.popups, popup)
	o.windows = append(o.windows, w)
	return w, nil
}

func (o *fakeOpener) window(i int) *fakeWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.windows[i]
}

func authorizeAPI(isAuthorized bool) *fakeAPI {
	api := newFakeAPI()
	api.respond("/authorize/{shim}", func(r *http.Request) (int, string) {
		return http.StatusOK, mustJSON(AuthorizationRequest{
			StateKey:         "state-1",
			Username:         r.URL.Query().Get("username"),
			AuthorizationURL: "https://provider.example/oauth?state=state-1",
			IsAuthorized:     isAuthorized,
		})
	})
	api.router.HandleFunc("/de-authorize/{shim}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["Success: Authorization Removed."]`))
	}).Methods(http.MethodDelete)
	return api
}

func TestCenteredWindow(t *testing.T) {
	spec := CenteredWindow(Screen{Width: 1920, Height: 1080}, 500, 500)
	assert.Equal(t, 710, spec.Left)
	assert.Equal(t, 290, spec.Top)
	assert.Equal(t, "resizable=0,scrollbars=1,width=500,height=500,left=710,top=290", spec.String())
}

func TestAuthorizer_Connect(t *testing.T) {
	opener := &fakeOpener{}
	a := NewAuthorizer(authorizeAPI(false).resources(), opener,
		WithPollInterval(5*time.Millisecond), WithScreen(Screen{Width: 1000, Height: 800}))
	defer a.Close()

	var completed int32
	require.NoError(t, a.Connect(context.Background(), "Anna", "fitbit", func() { atomic.AddInt32(&completed, 1) }))
	require.Len(t, opener.popups, 1)
	assert.Equal(t, "https://provider.example/oauth?state=state-1", opener.popups[0].URL)
	assert.Equal(t, WindowSpec{Width: 500, Height: 500, Left: 250, Top: 150, Scrollbars: true}, opener.popups[0].Spec)
	assert.True(t, a.Active("Anna", "fitbit"))

	// probe errors are ignored
	opener.window(0).mu.Lock()
	opener.window(0).err = errors.New("cross origin")
	opener.window(0).mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&completed))
	assert.True(t, a.Active("Anna", "fitbit"))

	opener.window(0).close()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&completed) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, a.Active("Anna", "fitbit"))

	// the poll has stopped, onComplete is called exactly once
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&completed))
}

func TestAuthorizer_ConnectAlreadyAuthorized(t *testing.T) {
	opener := &fakeOpener{}
	a := NewAuthorizer(authorizeAPI(true).resources(), opener)

	called := false
	require.NoError(t, a.Connect(context.Background(), "Anna", "fitbit", func() { called = true }))
	assert.True(t, called)
	assert.Empty(t, opener.popups)
	assert.False(t, a.Active("Anna", "fitbit"))
}

func TestAuthorizer_Supersede(t *testing.T) {
	opener := &fakeOpener{}
	a := NewAuthorizer(authorizeAPI(false).resources(), opener, WithPollInterval(5*time.Millisecond))
	defer a.Close()

	var first, second int32
	require.NoError(t, a.Connect(context.Background(), "Anna", "fitbit", func() { atomic.AddInt32(&first, 1) }))
	require.NoError(t, a.Connect(context.Background(), "Anna", "fitbit", func() { atomic.AddInt32(&second, 1) }))
	require.Len(t, opener.popups, 2)
	assert.NotEqual(t, opener.popups[0].ID, opener.popups[1].ID)

	opener.window(0).close()
	opener.window(1).close()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestAuthorizer_Cancel(t *testing.T) {
	opener := &fakeOpener{}
	a := NewAuthorizer(authorizeAPI(false).resources(), opener, WithPollInterval(5*time.Millisecond))

	var completed int32
	require.NoError(t, a.Connect(context.Background(), "Anna", "fitbit", func() { atomic.AddInt32(&completed, 1) }))
	a.Cancel("Anna", "fitbit")
	assert.False(t, a.Active("Anna", "fitbit"))

	opener.window(0).close()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&completed))
}

func TestAuthorizer_ContextCancelled(t *testing.T) {
	opener := &fakeOpener{}
	a := NewAuthorizer(authorizeAPI(false).resources(), opener, WithPollInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, a.Connect(ctx, "Anna", "fitbit", nil))
	cancel()
	assert.Eventually(t, func() bool { return !a.Active("Anna", "fitbit") }, time.Second, 5*time.Millisecond)
}

func TestAuthorizer_ConnectFailures(t *testing.T) {
	api := newFakeAPI()
	api.static("/authorize/{shim}", http.StatusInternalServerError, `{"error":"down"}`)
	opener := &fakeOpener{}
	a := NewAuthorizer(api.resources(), opener)

	err := a.Connect(context.Background(), "Anna", "fitbit", nil)
	var networkErr *NetworkError
	require.True(t, errors.As(err, &networkErr))
	assert.Empty(t, opener.popups)

}

func TestAuthorizer_ConnectWithoutWindow(t *testing.T) {
	opener := &fakeOpener{err: errors.New("no display")}
	a := NewAuthorizer(authorizeAPI(false).resources(), opener, WithPollInterval(5*time.Millisecond))
	defer a.Close()

	// a window which cannot be opened counts as closed on the first poll
	var completed int32
	require.NoError(t, a.Connect(context.Background(), "Anna", "fitbit", func() { atomic.AddInt32(&completed, 1) }))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&completed) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, a.Active("Anna", "fitbit"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&completed))
}

func TestAuthorizer_Disconnect(t *testing.T) {
	api := authorizeAPI(false)
	prompts := []string{}
	answer := false
	confirmer := ConfirmFunc(func(prompt string) bool {
		prompts = append(prompts, prompt)
		return answer
	})
	a := NewAuthorizer(api.resources(), &fakeOpener{}, WithConfirmer(confirmer))

	called := false
	require.NoError(t, a.Disconnect(context.Background(), "Anna", "fitbit", func() { called = true }))
	assert.False(t, called)
	assert.Equal(t, 0, api.count())
	assert.Equal(t, []string{DisconnectPrompt}, prompts)

	answer = true
	require.NoError(t, a.Disconnect(context.Background(), "Anna", "fitbit", func() { called = true }))
	assert.True(t, called)
	assert.Equal(t, "DELETE /de-authorize/fitbit?username=Anna", api.last())
}

func TestAuthorizer_DisconnectFailure(t *testing.T) {
	api := newFakeAPI()
	api.static("/de-authorize/{shim}", http.StatusNotFound, `{}`)
	a := NewAuthorizer(api.resources(), &fakeOpener{}, WithConfirmer(AlwaysConfirm))

	called := false
	err := a.Disconnect(context.Background(), "Anna", "fitbit", func() { called = true })
	assert.Error(t, err)
	assert.False(t, called)
}
