package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one entry in a batch install
type BatchResult struct {
	Entry manifest.BatchEntry `json:"entry"`
	URL   string              `json:"url"`
	Info  *Info               `json:"info,omitempty"`
	Err   error               `json:"-"`
	Error string              `json:"error,omitempty"`
}

// OK reports whether the entry installed
func (b BatchResult) OK() bool { return b.Err == nil }

// InstallBatch installs every package named by the listing at listURL.
// Entry paths resolve against listURL. Entry failures are reported in the
// results and never abort the other entries; only a listing that cannot be
// fetched or parsed is an error.
func (r *Registry) InstallBatch(ctx context.Context, listURL string) ([]BatchResult, error) {
	if r.deps.HTTP == nil {
		return nil, fmt.Errorf("%w: http client", ErrMissingDependency)
	}
	base, err := url.Parse(strings.TrimSpace(listURL))
	if err != nil {
		return nil, fmt.Errorf("invalid listing url: %w", err)
	}

	resp, err := r.deps.HTTP.Get(ctx, base.String())
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	entries, err := manifest.ParseBatch(resp.Body)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(
		zap.String("op", id.NewOperationID().String()),
		zap.String("listing", base.String()))
	logger.Info("Installing batch", zap.Int("entries", len(entries)))

	results := make([]BatchResult, len(entries))
	var g errgroup.Group
	g.SetLimit(r.deps.Concurrency)

	for i, entry := range entries {
		g.Go(func() error {
			results[i] = r.installEntry(ctx, base, entry, logger)
			return nil
		})
	}
	g.Wait()

	changed := make(map[manifest.Category]bool)
	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		changed[res.Info.Category] = true
	}
	for _, cat := range categories {
		if changed[cat] {
			r.publish(cat)
		}
	}

	logger.Info("Batch complete",
		zap.Int("installed", len(results)-failed),
		zap.Int("failed", failed))
	return results, nil
}

func (r *Registry) installEntry(ctx context.Context, base *url.URL, entry manifest.BatchEntry, logger *logging.Logger) BatchResult {
	res := BatchResult{Entry: entry}

	ref, err := url.Parse(entry.Path)
	if err != nil {
		res.Err = fmt.Errorf("invalid entry path %q: %w", entry.Path, err)
		res.Error = res.Err.Error()
		return res
	}
	res.URL = base.ResolveReference(ref).String()

	info, err := r.installOne(ctx, res.URL)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	if entry.ID != "" && entry.ID != info.ID {
		logger.Warn("Batch entry installed under a different id",
			zap.String("listed", entry.ID),
			zap.String("installed", info.ID))
	}
	res.Info = info
	return res
}
