package http

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/tracker"
	"github.com/GriffinCanCode/Shelf/backend/internal/events"
)

// urlPresenter hands the login URL back to the API client instead of
// opening a browser itself
type urlPresenter struct {
	mu        sync.Mutex
	url       string
	dismissed bool
}

func (p *urlPresenter) Present(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.dismissed = false
	return nil
}

func (p *urlPresenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = true
}

func (p *urlPresenter) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dismissed {
		return ""
	}
	return p.url
}

type login struct {
	tracker   *tracker.Tracker
	flow      *tracker.LoginFlow
	presenter *urlPresenter
}

// LoginManager keeps one login flow per installed tracker
type LoginManager struct {
	bus     events.Subscriber
	timeout time.Duration

	mu    sync.Mutex
	flows map[string]*login
}

// NewLoginManager creates an empty manager
func NewLoginManager(bus events.Subscriber, timeout time.Duration) *LoginManager {
	return &LoginManager{
		bus:     bus,
		timeout: timeout,
		flows:   make(map[string]*login),
	}
}

// Flow returns the flow for t, starting over when the tracker was
// reinstalled since the last call. A new flow adopts any session the
// tracker already holds.
func (m *LoginManager) Flow(ctx context.Context, t *tracker.Tracker) (*tracker.LoginFlow, *urlPresenter) {
	m.mu.Lock()
	if l, ok := m.flows[t.ID()]; ok && l.tracker == t {
		m.mu.Unlock()
		return l.flow, l.presenter
	}
	p := &urlPresenter{}
	l := &login{
		tracker:   t,
		flow:      tracker.NewLoginFlow(t, p, m.bus, m.timeout),
		presenter: p,
	}
	old := m.flows[t.ID()]
	m.flows[t.ID()] = l
	m.mu.Unlock()

	if old != nil {
		old.flow.Close()
	}
	l.flow.Refresh(ctx)
	return l.flow, l.presenter
}

// Forget drops the flow of a removed tracker
func (m *LoginManager) Forget(id string) {
	m.mu.Lock()
	l, ok := m.flows[id]
	delete(m.flows, id)
	m.mu.Unlock()

	if ok {
		l.flow.Close()
	}
}
