package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/bridge"
	"github.com/GriffinCanCode/Shelf/backend/internal/capability"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/storage"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const trackerGuest = `
var history = {};
plugin.getLoginURL = function () { return "https://tracker.example/oauth?client=shelf"; };
plugin.handleLoginCallback = function (url) {
	if (url.indexOf("code=") >= 0) {
		setTimeout(function () { setLoginStatus(true); }, 5);
	} else if (url.indexOf("error=") >= 0) {
		setLoginStatus(false);
	}
};
plugin.isLoggedIn = function () { return getSettingsValue("loggedIn") === true; };
plugin.setHistory = function (id, h) { history[id] = h; };
plugin.getHistory = function (id) { return history[id] || null; };
plugin.deleteHistory = function (id) { delete history[id]; };
plugin.getSettings = function () { return [{ title: "Account", items: [] }]; };
`

type mockPresenter struct {
	mock.Mock
}

func (m *mockPresenter) Present(ctx context.Context, url string) error {
	return m.Called(url).Error(0)
}

func (m *mockPresenter) Dismiss() {
	m.Called()
}

func newTracker(t *testing.T, script string) (*Tracker, *events.Bus) {
	t.Helper()
	bus := events.NewBus(8, nil)
	t.Cleanup(bus.Close)

	injector, err := capability.NewInjector(capability.Deps{
		HTTP:        client.NewClient(client.DefaultOptions(), nil),
		Preferences: storage.NewMemoryStore(),
		Keychain:    storage.NewMemoryStore(),
		Bus:         bus,
	})
	require.NoError(t, err)

	sc, err := sandbox.New(sandbox.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sc.Close() })

	m := manifest.Manifest{ID: "anilist", Name: "AniList", Version: "1", Kind: manifest.KindTracker}
	require.NoError(t, injector.Inject(context.Background(), sc, m))
	require.NoError(t, sc.Load(context.Background(), "code.js", script))

	tr, err := New(m, sc, bridge.New(time.Second, nil, nil))
	require.NoError(t, err)
	return tr, bus
}

func TestTrackerHistory(t *testing.T) {
	tr, _ := newTracker(t, trackerGuest)
	ctx := context.Background()

	_, ok := tr.GetHistory(ctx, "berserk")
	assert.False(t, ok)

	score := 9.5
	assert.True(t, tr.SetHistory(ctx, "berserk", History{Progress: 42, Score: &score, Status: "reading"}))

	h, ok := tr.GetHistory(ctx, "berserk")
	require.True(t, ok)
	assert.Equal(t, 42, h.Progress)
	assert.Equal(t, 9.5, *h.Score)

	assert.True(t, tr.DeleteHistory(ctx, "berserk"))
	_, ok = tr.GetHistory(ctx, "berserk")
	assert.False(t, ok)

	settings, ok := tr.GetSettings(ctx)
	require.True(t, ok)
	assert.Equal(t, "Account", settings[0].Title)
}

func TestNewRejectsSources(t *testing.T) {
	_, err := New(manifest.Manifest{ID: "demo", Kind: manifest.KindText}, nil, nil)
	assert.ErrorIs(t, err, ErrNotTracker)
}

func TestLoginFlowSuccess(t *testing.T) {
	tr, bus := newTracker(t, trackerGuest)
	ctx := context.Background()

	presenter := &mockPresenter{}
	presenter.On("Present", "https://tracker.example/oauth?client=shelf").Return(nil).Once()
	presenter.On("Dismiss").Return().Once()

	flow := NewLoginFlow(tr, presenter, bus, time.Second)
	defer flow.Close()
	assert.Equal(t, NotLoggedIn, flow.State())

	require.NoError(t, flow.Begin(ctx))
	assert.Equal(t, AwaitingRedirect, flow.State())

	assert.ErrorIs(t, flow.Begin(ctx), ErrInvalidTransition)

	require.NoError(t, flow.Complete(ctx, "shelf://callback?code=abc"))
	assert.Equal(t, LoggedIn, flow.State())

	loggedIn, ok := tr.IsLoggedIn(ctx)
	require.True(t, ok)
	assert.True(t, loggedIn)

	assert.ErrorIs(t, flow.Cancel(), ErrInvalidTransition)
	assert.ErrorIs(t, flow.Complete(ctx, "again"), ErrInvalidTransition)
	presenter.AssertExpectations(t)
}

func TestLoginFlowFailure(t *testing.T) {
	tr, bus := newTracker(t, trackerGuest)
	ctx := context.Background()

	presenter := &mockPresenter{}
	presenter.On("Present", mock.Anything).Return(nil)
	presenter.On("Dismiss").Return()

	flow := NewLoginFlow(tr, presenter, bus, time.Second)
	defer flow.Close()
	require.NoError(t, flow.Begin(ctx))
	assert.ErrorIs(t, flow.Complete(ctx, "shelf://callback?error=denied"), ErrLoginFailed)
	assert.Equal(t, Failed, flow.State())

	// retry is allowed from Failed; a callback that never reports times out
	flow.timeout = 50 * time.Millisecond
	require.NoError(t, flow.Begin(ctx))
	assert.ErrorIs(t, flow.Complete(ctx, "shelf://callback"), ErrLoginFailed)
	assert.Equal(t, Failed, flow.State())

	// the flow keeps exactly one subscription until closed
	assert.Equal(t, 1, bus.SubscriberCount())
	flow.Close()
	flow.Close()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestLoginFlowCancel(t *testing.T) {
	tr, bus := newTracker(t, trackerGuest)
	ctx := context.Background()

	presenter := &mockPresenter{}
	presenter.On("Present", mock.Anything).Return(nil)
	presenter.On("Dismiss").Return().Once()

	flow := NewLoginFlow(tr, presenter, bus, time.Second)
	defer flow.Close()
	assert.ErrorIs(t, flow.Cancel(), ErrInvalidTransition)

	require.NoError(t, flow.Begin(ctx))
	require.NoError(t, flow.Cancel())
	assert.Equal(t, NotLoggedIn, flow.State())
	assert.Equal(t, 1, bus.SubscriberCount())
	presenter.AssertExpectations(t)
}

func TestLoginFlowPresentErrorAndMissingURL(t *testing.T) {
	tr, bus := newTracker(t, trackerGuest)
	ctx := context.Background()

	presenter := &mockPresenter{}
	presenter.On("Present", mock.Anything).Return(errors.New("no browser"))

	flow := NewLoginFlow(tr, presenter, bus, time.Second)
	defer flow.Close()
	assert.Error(t, flow.Begin(ctx))
	assert.Equal(t, Failed, flow.State())

	bare, bareBus := newTracker(t, `plugin.getLoginURL = function () { return ""; };`)
	flow = NewLoginFlow(bare, presenter, bareBus, time.Second)
	defer flow.Close()
	assert.ErrorIs(t, flow.Begin(ctx), ErrNoLoginURL)
	assert.Equal(t, Failed, flow.State())
}

// guestRun evaluates src inside the tracker's own context, as a guest
// callback would
func guestRun(t *testing.T, tr *Tracker, src string) {
	t.Helper()
	require.NoError(t, tr.Context().Run(context.Background(), func(vm *goja.Runtime) error {
		_, err := vm.RunString(src)
		return err
	}))
}

func TestLoginFlowFollowsLogout(t *testing.T) {
	tr, bus := newTracker(t, trackerGuest)
	ctx := context.Background()

	presenter := &mockPresenter{}
	presenter.On("Present", mock.Anything).Return(nil)
	presenter.On("Dismiss").Return()

	flow := NewLoginFlow(tr, presenter, bus, time.Second)
	defer flow.Close()
	require.NoError(t, flow.Begin(ctx))
	require.NoError(t, flow.Complete(ctx, "shelf://callback?code=abc"))
	require.Equal(t, LoggedIn, flow.State())

	guestRun(t, tr, "setLoginStatus(false)")
	assert.Eventually(t, func() bool { return flow.State() == NotLoggedIn }, time.Second, 5*time.Millisecond)

	loggedIn, ok := tr.IsLoggedIn(ctx)
	require.True(t, ok)
	assert.False(t, loggedIn)

	// logging in again works without reinstalling
	require.NoError(t, flow.Begin(ctx))
	assert.Equal(t, AwaitingRedirect, flow.State())
}

func TestLoginFlowRefreshAdoptsSession(t *testing.T) {
	tr, bus := newTracker(t, trackerGuest)
	ctx := context.Background()

	// a session persisted before this flow existed
	guestRun(t, tr, "setLoginStatus(true)")

	flow := NewLoginFlow(tr, &mockPresenter{}, bus, time.Second)
	defer flow.Close()
	assert.Equal(t, NotLoggedIn, flow.State())
	assert.Equal(t, LoggedIn, flow.Refresh(ctx))
	assert.ErrorIs(t, flow.Begin(ctx), ErrInvalidTransition)

	// a later login reported by the guest is picked up without a handshake
	other, otherBus := newTracker(t, trackerGuest)
	follower := NewLoginFlow(other, &mockPresenter{}, otherBus, time.Second)
	defer follower.Close()
	guestRun(t, other, "setLoginStatus(true)")
	assert.Eventually(t, func() bool { return follower.State() == LoggedIn }, time.Second, 5*time.Millisecond)
}

func TestLoginFlowBeginDoesNotHoldState(t *testing.T) {
	tr, bus := newTracker(t, `
plugin.getLoginURL = function () {
	return new Promise(function (resolve) {
		setTimeout(function () { resolve("https://tracker.example/slow"); }, 300);
	});
};`)
	ctx := context.Background()

	presenter := &mockPresenter{}
	presenter.On("Present", "https://tracker.example/slow").Return(nil).Once()

	flow := NewLoginFlow(tr, presenter, bus, time.Second)
	defer flow.Close()

	began := make(chan error, 1)
	go func() { began <- flow.Begin(ctx) }()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	assert.Equal(t, NotLoggedIn, flow.State())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.ErrorIs(t, flow.Begin(ctx), ErrInvalidTransition, "one Begin at a time")

	require.NoError(t, <-began)
	assert.Equal(t, AwaitingRedirect, flow.State())
	presenter.AssertExpectations(t)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_redirect", AwaitingRedirect.String())
	assert.Equal(t, "unknown", State(99).String())
}
