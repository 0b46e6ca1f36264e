package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/tracker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handlers) tracker(c *gin.Context) (*tracker.Tracker, bool) {
	t, ok := h.registry.Tracker(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, fmt.Errorf("tracker not installed: %s", c.Param("id")))
	}
	return t, ok
}

func loginStatus(err error) int {
	switch {
	case errors.Is(err, tracker.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrNoLoginURL):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrLoginFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// LoginState reports where the login handshake stands
func (h *Handlers) LoginState(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	flow, presenter := h.logins.Flow(c.Request.Context(), t)
	body := gin.H{
		"success": true,
		"state":   flow.State().String(),
	}
	if flow.State() == tracker.AwaitingRedirect {
		body["url"] = presenter.URL()
	}
	c.JSON(http.StatusOK, body)
}

// BeginLogin starts the handshake and returns the page to open
func (h *Handlers) BeginLogin(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	flow, presenter := h.logins.Flow(c.Request.Context(), t)
	if err := flow.Begin(c.Request.Context()); err != nil {
		fail(c, loginStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   flow.State().String(),
		"url":     presenter.URL(),
	})
}

// CompleteLogin forwards the redirect the user landed on
func (h *Handlers) CompleteLogin(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	flow, _ := h.logins.Flow(c.Request.Context(), t)
	if err := flow.Complete(c.Request.Context(), req.URL); err != nil {
		h.logger.Info("Login not completed", zap.String("tracker", t.ID()), zap.Error(err))
		fail(c, loginStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   flow.State().String(),
	})
}

// CancelLogin abandons a pending handshake
func (h *Handlers) CancelLogin(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	flow, _ := h.logins.Flow(c.Request.Context(), t)
	if err := flow.Cancel(); err != nil {
		fail(c, loginStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   flow.State().String(),
	})
}

// LoginStatus asks the tracker itself whether it holds a session
func (h *Handlers) LoginStatus(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	loggedIn, ok := t.IsLoggedIn(c.Request.Context())
	respond(c, "loggedIn", loggedIn, ok)
}

// GetTrackerSettings returns the tracker's settings schema
func (h *Handlers) GetTrackerSettings(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	settings, ok := t.GetSettings(c.Request.Context())
	respond(c, "settings", settings, ok)
}

// GetHistory returns tracked progress for an entry
func (h *Handlers) GetHistory(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	history, ok := t.GetHistory(c.Request.Context(), c.Param("entry"))
	respond(c, "history", history, ok)
}

// SetHistory records progress for an entry
func (h *Handlers) SetHistory(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	var history tracker.History
	if err := c.ShouldBindJSON(&history); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if !t.SetHistory(c.Request.Context(), c.Param("entry"), history) {
		fail(c, http.StatusBadGateway, errors.New("tracker rejected history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteHistory forgets progress for an entry
func (h *Handlers) DeleteHistory(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	if !t.DeleteHistory(c.Request.Context(), c.Param("entry")) {
		fail(c, http.StatusBadGateway, errors.New("tracker rejected delete"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
