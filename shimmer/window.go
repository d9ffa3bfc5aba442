package shimmer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// Size of the authorization window
const (
	AuthorizationWindowWidth  = 500
	AuthorizationWindowHeight = 500
)

// Screen is the size of the screen windows are centered on
type Screen struct {
	Width  int
	Height int
}

// WindowSpec describes the geometry and chrome of a window
type WindowSpec struct {
	Width      int
	Height     int
	Left       int
	Top        int
	Resizable  bool
	Scrollbars bool
}

// CenteredWindow returns a fixed size, scrollable window centered on screen
func CenteredWindow(screen Screen, width, height int) WindowSpec {
	return WindowSpec{
		Width:      width,
		Height:     height,
		Left:       screen.Width/2 - width/2,
		Top:        screen.Height/2 - height/2,
		Scrollbars: true,
	}
}

func (s WindowSpec) String() string {
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	return "resizable=" + flag(s.Resizable) +
		",scrollbars=" + flag(s.Scrollbars) +
		",width=" + strconv.Itoa(s.Width) +
		",height=" + strconv.Itoa(s.Height) +
		",left=" + strconv.Itoa(s.Left) +
		",top=" + strconv.Itoa(s.Top)
}

// Popup is a request to show URL in a new window
type Popup struct {
	ID   string
	URL  string
	Spec WindowSpec
}

// Window is an open window
type Window interface {
	// Closed returns true once the window has been closed
	Closed() (bool, error)
	Focus() error
}

// WindowOpener opens windows
type WindowOpener interface {
	Open(ctx context.Context, popup Popup) (Window, error)
}

type noOpener struct{}

func (noOpener) Open(ctx context.Context, popup Popup) (Window, error) {
	return nil, errors.New("no window opener configured")
}

type closedWindow struct{}

func (closedWindow) Closed() (bool, error) { return true, nil }

func (closedWindow) Focus() error { return nil }

// RedirectProvider is implemented by window openers which learn about the end of an
// authorization through a redirect
type RedirectProvider interface {
	RedirectURL(popupID string) string
}

// BrowserOpener shows popups in the system browser. A window counts as closed when the
// listener received the redirect for its popup.
type BrowserOpener struct {
	listener *CallbackListener
	open     func(url string) error
}

// NewBrowserOpener returns a BrowserOpener which waits for redirects on listener
func NewBrowserOpener(listener *CallbackListener) *BrowserOpener {
	return &BrowserOpener{listener: listener, open: browser.OpenURL}
}

// WithLauncher replaces the function which shows a URL, by default the system browser
func (o *BrowserOpener) WithLauncher(launch func(url string) error) *BrowserOpener {
	o.open = launch
	return o
}

// Open implements WindowOpener
func (o *BrowserOpener) Open(ctx context.Context, popup Popup) (Window, error) {
	w := o.listener.expect(popup.ID)
	logger.FromContext(ctx).Infof("opening %s in browser (%s)", popup.URL, popup.Spec)
	if err := o.open(popup.URL); err != nil {
		o.listener.forget(popup.ID)
		return nil, fmt.Errorf("cannot open browser: %w", err)
	}
	return w, nil
}

// RedirectURL implements RedirectProvider
func (o *BrowserOpener) RedirectURL(popupID string) string {
	return o.listener.URL(popupID)
}

type callbackWindow struct {
	once sync.Once
	done chan struct{}
}

func newCallbackWindow() *callbackWindow {
	return &callbackWindow{done: make(chan struct{})}
}

func (w *callbackWindow) close() {
	w.once.Do(func() { close(w.done) })
}

func (w *callbackWindow) Closed() (bool, error) {
	select {
	case <-w.done:
		return true, nil
	default:
		return false, nil
	}
}

// Focus is a no-op, the browser owns the window
func (w *callbackWindow) Focus() error {
	return nil
}

// CallbackListener is a local http server receiving the redirect of the shim server at
// the end of an authorization
type CallbackListener struct {
	addr     string
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logPipe  io.Closer

	mu      sync.Mutex
	windows map[string]*callbackWindow
}

// NewCallbackListener returns a listener for addr, like "127.0.0.1:8765". Port 0 picks a
// free port.
func NewCallbackListener(addr string) *CallbackListener {
	l := &CallbackListener{
		addr:    addr,
		router:  mux.NewRouter(),
		windows: map[string]*callbackWindow{},
	}
	logger.AddRequestID(l.router)
	l.router.HandleFunc("/authorization-complete/{popup}", l.complete).Methods(http.MethodGet)
	return l
}

// Handler returns the http handler of the listener
func (l *CallbackListener) Handler() http.Handler {
	return l.router
}

// Start starts listening. The server stops when ctx is done or Shutdown is called.
func (l *CallbackListener) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", l.addr, err)
	}
	writer := logger.FromContext(ctx).WriterLevel(logrus.DebugLevel)
	l.listener = listener
	l.logPipe = writer
	l.server = &http.Server{
		Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(writer, l.router)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FromContext(ctx).WithError(err).Errorln("callback listener stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		l.Shutdown(context.Background())
	}()
	logger.FromContext(ctx).Debugln("callback listener on", listener.Addr())
	return nil
}

// Shutdown stops the server
func (l *CallbackListener) Shutdown(ctx context.Context) error {
	if l.server == nil {
		return nil
	}
	err := l.server.Shutdown(ctx)
	l.logPipe.Close()
	return err
}

// URL returns the redirect URL for popupID
func (l *CallbackListener) URL(popupID string) string {
	addr := l.addr
	if l.listener != nil {
		addr = l.listener.Addr().String()
	}
	return "http://" + addr + "/authorization-complete/" + popupID
}

func (l *CallbackListener) expect(popupID string) *callbackWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := newCallbackWindow()
	l.windows[popupID] = w
	return w
}

func (l *CallbackListener) forget(popupID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, popupID)
}

const completePage = `<!DOCTYPE html>
<html><head><title>Authorization %[1]s</title></head>
<body><p>Authorization %[1]s, you can close this window.</p>
<script>setTimeout(function () { window.close(); }, 3000);</script>
</body></html>
`

func (l *CallbackListener) complete(w http.ResponseWriter, r *http.Request) {
	popupID := mux.Vars(r)["popup"]
	rlog := logger.FromContext(r.Context())

	l.mu.Lock()
	window, ok := l.windows[popupID]
	delete(l.windows, popupID)
	l.mu.Unlock()
	if !ok {
		rlog.Warnln("redirect for unknown authorization", popupID)
		http.Error(w, "unknown authorization", http.StatusNotFound)
		return
	}

	state := "complete"
	if r.URL.Query().Get("errorState") == "failure" {
		state = "failed"
	}
	rlog.Infof("authorization %s %s", popupID, state)
	window.close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, completePage, state)
}
