package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/registry"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/paths"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListPackages lists installed packages
func (h *Handlers) ListPackages(c *gin.Context) {
	packages := h.registry.List()
	if packages == nil {
		packages = []registry.Info{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"packages": packages,
		"count":    len(packages),
	})
}

// GetPackage describes one installed package
func (h *Handlers) GetPackage(c *gin.Context) {
	info, ok := h.registry.Lookup(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, fmt.Errorf("package not installed: %s", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"package": info,
	})
}

// PackageFiles lists what a package installed on disk
func (h *Handlers) PackageFiles(c *gin.Context) {
	inv, err := h.registry.Files(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, registry.ErrNotInstalled):
		fail(c, http.StatusNotFound, err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"inventory": inv,
	})
}

// InstallPackage installs from a path, file:// or http(s):// source
func (h *Handlers) InstallPackage(c *gin.Context) {
	var req struct {
		Source string `json:"source" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	info, err := h.registry.Install(c.Request.Context(), req.Source)
	if err != nil {
		fail(c, installStatus(err), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"package": info,
	})
}

// InstallBatch installs every package in a listing
func (h *Handlers) InstallBatch(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	results, err := h.registry.InstallBatch(c.Request.Context(), req.URL)
	if err != nil {
		fail(c, installStatus(err), err)
		return
	}

	var installed int
	for _, r := range results {
		if r.OK() {
			installed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"results":   results,
		"installed": installed,
		"failed":    len(results) - installed,
	})
}

// RemovePackage uninstalls a package; absent packages succeed
func (h *Handlers) RemovePackage(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Remove(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, paths.ErrInvalidPackageID):
			fail(c, http.StatusBadRequest, err)
		case errors.Is(err, registry.ErrClosed):
			fail(c, http.StatusServiceUnavailable, err)
		default:
			h.logger.Warn("Remove failed", zap.String("id", id), zap.Error(err))
			fail(c, http.StatusInternalServerError, err)
		}
		return
	}
	h.logins.Forget(id)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
	})
}

func installStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnsupportedSource):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrStatus), errors.Is(err, client.ErrUnsupportedScheme):
		return http.StatusBadGateway
	case errors.Is(err, registry.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
