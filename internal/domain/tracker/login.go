package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/events"
)

// DefaultLoginTimeout bounds the wait for setLoginStatus after a callback
const DefaultLoginTimeout = 30 * time.Second

var (
	ErrInvalidTransition = errors.New("invalid login state transition")
	ErrNoLoginURL        = errors.New("tracker returned no login URL")
	ErrLoginFailed       = errors.New("tracker login failed")
)

// State is a step of the login handshake
type State int

const (
	NotLoggedIn State = iota
	AwaitingRedirect
	LoggedIn
	Failed
)

func (s State) String() string {
	switch s {
	case NotLoggedIn:
		return "not_logged_in"
	case AwaitingRedirect:
		return "awaiting_redirect"
	case LoggedIn:
		return "logged_in"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Presenter shows the login page to the user, typically in a browser
type Presenter interface {
	Present(ctx context.Context, url string) error
	Dismiss()
}

// LoginFlow drives NotLoggedIn → AwaitingRedirect → LoggedIn | Failed.
// For its whole life it follows the tracker's login-status topic, so a
// guest that reports a logout later moves the flow back to NotLoggedIn.
type LoginFlow struct {
	tracker   *Tracker
	presenter Presenter
	timeout   time.Duration
	sub       *events.Subscription

	mu    sync.Mutex
	state State
	busy  bool      // Begin or Complete is talking to the guest
	inbox chan bool // latest status reported while awaiting the redirect
	once  sync.Once
}

// NewLoginFlow creates a flow in the NotLoggedIn state. Call Refresh to
// adopt a session the tracker already holds, and Close when done.
func NewLoginFlow(t *Tracker, presenter Presenter, bus events.Subscriber, timeout time.Duration) *LoginFlow {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	f := &LoginFlow{tracker: t, presenter: presenter, timeout: timeout}
	if bus != nil {
		f.sub = bus.Subscribe(events.LoginStatusTopic(t.ID()))
		go f.watch()
	}
	return f
}

// State returns the current step
func (f *LoginFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Refresh asks the tracker whether it holds a session and adopts the
// answer unless a handshake is under way
func (f *LoginFlow) Refresh(ctx context.Context) State {
	loggedIn, ok := f.tracker.IsLoggedIn(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.settle(loggedIn)
	}
	return f.state
}

// Begin fetches the login URL and presents it
func (f *LoginFlow) Begin(ctx context.Context) error {
	f.mu.Lock()
	if f.busy || (f.state != NotLoggedIn && f.state != Failed) {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, state)
	}
	f.busy = true
	f.mu.Unlock()

	url, ok := f.tracker.GetLoginURL(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	switch {
	case !ok:
		f.state = Failed
		return ErrNoLoginURL
	case f.state == LoggedIn:
		// the guest reported a session while we fetched the URL
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, f.state)
	}

	if err := f.presenter.Present(ctx, url); err != nil {
		f.state = Failed
		return fmt.Errorf("present login page: %w", err)
	}
	f.inbox = make(chan bool, 1)
	f.state = AwaitingRedirect
	return nil
}

// Complete hands the redirect URL to the tracker and waits for its status
func (f *LoginFlow) Complete(ctx context.Context, callbackURL string) error {
	f.mu.Lock()
	if f.state != AwaitingRedirect || f.busy {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, state)
	}
	f.busy = true
	inbox := f.inbox
	f.mu.Unlock()

	loggedIn := f.tracker.HandleLoginCallback(ctx, callbackURL) && f.await(ctx, inbox)
	f.presenter.Dismiss()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.inbox = nil
	if !loggedIn {
		f.state = Failed
		return ErrLoginFailed
	}
	f.state = LoggedIn
	return nil
}

// Cancel abandons the handshake after the user dismissed the login page
func (f *LoginFlow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != AwaitingRedirect || f.busy {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, f.state)
	}
	f.presenter.Dismiss()
	f.inbox = nil
	f.state = NotLoggedIn
	return nil
}

// Close stops following the login-status topic
func (f *LoginFlow) Close() {
	f.once.Do(func() {
		if f.sub != nil {
			f.sub.Unsubscribe()
		}
	})
}

func (f *LoginFlow) watch() {
	for evt := range f.sub.C() {
		status, ok := evt.Payload.(bool)
		if !ok {
			continue
		}

		f.mu.Lock()
		if f.state == AwaitingRedirect {
			// keep only the latest report for Complete
			select {
			case <-f.inbox:
			default:
			}
			f.inbox <- status
		} else {
			f.settle(status)
		}
		f.mu.Unlock()
	}
}

// settle applies a reported status outside a handshake. Caller holds mu.
func (f *LoginFlow) settle(loggedIn bool) {
	if f.state == AwaitingRedirect {
		return
	}
	switch {
	case loggedIn:
		f.state = LoggedIn
	case f.state == LoggedIn:
		f.state = NotLoggedIn
	}
}

func (f *LoginFlow) await(ctx context.Context, inbox <-chan bool) bool {
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case status := <-inbox:
		return status
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
