package shimmer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// DefaultPollInterval is the interval in which an open authorization window is checked
const DefaultPollInterval = time.Second

// DisconnectPrompt is the question asked before a shim is disconnected
const DisconnectPrompt = "Disconnect this shim, are you sure?"

// Authorizer connects and disconnects users to shims
type Authorizer struct {
	resources    *Resources
	opener       WindowOpener
	confirmer    Confirmer
	pollInterval time.Duration
	screen       Screen

	mu       sync.Mutex
	attempts map[attemptKey]*attempt
}

type attemptKey struct {
	userID string
	shim   string
}

type attempt struct {
	id     string
	cancel context.CancelFunc
}

// AuthorizerOption configures an Authorizer
type AuthorizerOption func(*Authorizer)

// WithPollInterval sets the interval in which the window is checked
func WithPollInterval(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithScreen sets the screen the authorization window is centered on
func WithScreen(screen Screen) AuthorizerOption {
	return func(a *Authorizer) {
		a.screen = screen
	}
}

// WithConfirmer sets the confirmer asked before disconnecting
func WithConfirmer(c Confirmer) AuthorizerOption {
	return func(a *Authorizer) {
		a.confirmer = c
	}
}

// NewAuthorizer returns a new Authorizer. Without WithConfirmer every disconnect is declined.
func NewAuthorizer(resources *Resources, opener WindowOpener, options ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		resources:    resources,
		opener:       opener,
		confirmer:    NeverConfirm,
		pollInterval: DefaultPollInterval,
		screen:       Screen{Width: 1920, Height: 1080},
		attempts:     map[attemptKey]*attempt{},
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Connect starts the authorization of userID for shimName. If the user already authorized
// the shim, onComplete is called right away. Otherwise the authorization URL is opened in a
// window and onComplete is called from the poll goroutine once the window has been closed.
// A window which cannot be opened counts as closed on the first poll.
//
// A previous attempt for the same user and shim is cancelled. The poll stops without calling
// onComplete when ctx is done.
func (a *Authorizer) Connect(ctx context.Context, userID, shimName string, onComplete func()) error {
	ctx, rlog := logger.ContextWithLoggerIdentity(ctx, userID)
	key := attemptKey{userID: userID, shim: shimName}
	id := uuid.NewString()

	redirectURL := ""
	if provider, ok := a.opener.(RedirectProvider); ok {
		redirectURL = provider.RedirectURL(id)
	}
	request, err := a.resources.RequestAuthorization(ctx, shimName, userID, redirectURL)
	if err != nil {
		return err
	}
	if request.IsAuthorized {
		rlog.Infof("%s is already authorized for %s", userID, shimName)
		a.Cancel(userID, shimName)
		complete(onComplete)
		return nil
	}

	window, err := a.opener.Open(ctx, Popup{
		ID:   id,
		URL:  request.AuthorizationURL,
		Spec: CenteredWindow(a.screen, AuthorizationWindowWidth, AuthorizationWindowHeight),
	})
	if err != nil {
		// treated like a window the user closed right away
		rlog.WithError(err).Warnln("cannot open authorization window")
		window = closedWindow{}
	}
	if err := window.Focus(); err != nil {
		rlog.WithError(err).Debugln("cannot focus authorization window")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	current := &attempt{id: id, cancel: cancel}
	a.mu.Lock()
	if prior, ok := a.attempts[key]; ok {
		rlog.Debugf("superseding authorization %s", prior.id)
		prior.cancel()
	}
	a.attempts[key] = current
	a.mu.Unlock()

	go a.poll(pollCtx, key, current, window, onComplete)
	return nil
}

func (a *Authorizer) poll(ctx context.Context, key attemptKey, current *attempt, window Window, onComplete func()) {
	rlog := logger.FromContext(ctx)
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.finish(key, current)
			return
		case <-ticker.C:
			closed, err := window.Closed()
			if err != nil {
				// the window may belong to a foreign origin while the provider page is shown
				rlog.WithError(err).Debugln("cannot probe authorization window")
				continue
			}
			if !closed {
				continue
			}
			if !a.finish(key, current) {
				return
			}
			rlog.Infof("authorization window for %s closed", key.shim)
			complete(onComplete)
			return
		}
	}
}

// finish removes the attempt and cancels its poll. It returns false if the attempt
// had already been superseded or cancelled.
func (a *Authorizer) finish(key attemptKey, current *attempt) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	current.cancel()
	if a.attempts[key] != current {
		return false
	}
	delete(a.attempts, key)
	return true
}

// Active returns true while an authorization window of userID for shimName is polled
func (a *Authorizer) Active(userID, shimName string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.attempts[attemptKey{userID: userID, shim: shimName}]
	return ok
}

// Cancel stops polling the authorization window of userID for shimName
func (a *Authorizer) Cancel(userID, shimName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := attemptKey{userID: userID, shim: shimName}
	if current, ok := a.attempts[key]; ok {
		current.cancel()
		delete(a.attempts, key)
	}
}

// Close stops all polls
func (a *Authorizer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, current := range a.attempts {
		current.cancel()
		delete(a.attempts, key)
	}
}

// Disconnect removes the authorization of userID for shimName after the confirmer agreed.
// A declined confirmation does nothing and is not an error.
func (a *Authorizer) Disconnect(ctx context.Context, userID, shimName string, onComplete func()) error {
	ctx, rlog := logger.ContextWithLoggerIdentity(ctx, userID)
	if !a.confirmer.Confirm(DisconnectPrompt) {
		rlog.Debugf("disconnect of %s cancelled", shimName)
		return nil
	}
	if err := a.resources.Deauthorize(ctx, shimName, userID); err != nil {
		return err
	}
	rlog.Infof("successfully disconnected %s", shimName)
	complete(onComplete)
	return nil
}

func complete(onComplete func()) {
	if onComplete != nil {
		onComplete()
	}
}
