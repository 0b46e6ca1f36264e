package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/bridge"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/source"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
)

var ErrNotTracker = errors.New("package is not a tracker")

// History is the user's progress on one entry as known to a tracker
type History struct {
	Progress    int        `json:"progress"`
	Total       *int       `json:"total,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Status      string     `json:"status,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Rereads     int        `json:"rereads,omitempty"`
}

// Tracker is the façade over a tracker package
type Tracker struct {
	manifest manifest.Manifest
	sc       *sandbox.Context
	bridge   *bridge.Bridge
}

// New builds the tracker façade over a loaded context
func New(m manifest.Manifest, sc *sandbox.Context, b *bridge.Bridge) (*Tracker, error) {
	if m.Kind != manifest.KindTracker {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotTracker, m.ID, m.Kind)
	}
	return &Tracker{manifest: m, sc: sc, bridge: b}, nil
}

func (t *Tracker) Manifest() manifest.Manifest { return t.manifest }
func (t *Tracker) ID() string                  { return t.manifest.ID }
func (t *Tracker) Context() *sandbox.Context   { return t.sc }

// Close stops the underlying script context
func (t *Tracker) Close() error {
	return t.sc.Close()
}

// GetLoginURL returns the page the user must visit to authorize
func (t *Tracker) GetLoginURL(ctx context.Context) (string, bool) {
	url, ok := bridge.Optional[string](ctx, t.bridge, t.sc, "getLoginURL")
	return url, ok && url != ""
}

// HandleLoginCallback passes the redirect URL to the tracker. Trackers
// report the outcome through setLoginStatus.
func (t *Tracker) HandleLoginCallback(ctx context.Context, callbackURL string) bool {
	_, ok := bridge.Optional[any](ctx, t.bridge, t.sc, "handleLoginCallback", callbackURL)
	return ok
}

func (t *Tracker) SetHistory(ctx context.Context, entryID string, history History) bool {
	_, ok := bridge.Optional[any](ctx, t.bridge, t.sc, "setHistory", entryID, history)
	return ok
}

func (t *Tracker) GetHistory(ctx context.Context, entryID string) (*History, bool) {
	h, ok := bridge.Optional[*History](ctx, t.bridge, t.sc, "getHistory", entryID)
	if h == nil {
		return nil, false
	}
	return h, ok
}

func (t *Tracker) DeleteHistory(ctx context.Context, entryID string) bool {
	_, ok := bridge.Optional[any](ctx, t.bridge, t.sc, "deleteHistory", entryID)
	return ok
}

func (t *Tracker) IsLoggedIn(ctx context.Context) (bool, bool) {
	return bridge.Optional[bool](ctx, t.bridge, t.sc, "isLoggedIn")
}

func (t *Tracker) GetSettings(ctx context.Context) ([]source.SettingGroup, bool) {
	return bridge.Optional[[]source.SettingGroup](ctx, t.bridge, t.sc, "getSettings")
}
