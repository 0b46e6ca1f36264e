package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/filesystem"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/storage"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/paths"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Install installs or replaces a package from a local path, file:// URL or
// http(s):// URL. On failure nothing installed changes and every
// temporary is removed.
func (r *Registry) Install(ctx context.Context, src string) (*Info, error) {
	info, err := r.installOne(ctx, src)
	if err != nil {
		return nil, err
	}
	r.publish(info.Category)
	return info, nil
}

// installOne installs without publishing so batches can coalesce
// notifications
func (r *Registry) installOne(ctx context.Context, src string) (*Info, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	start := time.Now()
	op := id.NewOperationID()
	logger := r.logger.With(
		zap.String("op", op.String()),
		zap.String("src", src))

	ctx, span := tracing.Child(ctx, "registry.install")
	span.Annotate(zap.String("op", op.String()))
	info, err := r.install(ctx, src, logger)
	span.End(err)
	if err != nil {
		r.deps.Metrics.RecordInstall("unknown", monitoring.OutcomeError, time.Since(start))
		logger.Warn("Install failed", zap.Error(err))
		return nil, err
	}

	r.deps.Metrics.RecordInstall(string(info.Category), monitoring.OutcomeOK, time.Since(start))
	logger.Info("Installed package",
		zap.String("id", info.ID),
		zap.String("version", info.Version),
		zap.String("type", string(info.Kind)),
		zap.Duration("duration", time.Since(start)))
	return info, nil
}

func (r *Registry) install(ctx context.Context, src string, logger *logging.Logger) (*Info, error) {
	res, err := acquire(ctx, r.deps.HTTP, src, r.deps.Layout.Downloads(), r.deps.MaxArchiveBytes)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", src, err)
	}
	defer func() {
		if err := res.Release(); err != nil {
			logger.Warn("Failed to release install source", zap.Error(err))
		}
	}()

	staging := filepath.Join(r.deps.Layout.Staging(), uuid.NewString())
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logger.Warn("Failed to remove staging directory", zap.String("dir", staging), zap.Error(err))
		}
	}()

	result, err := r.deps.Extractor.Extract(ctx, res.Path(), staging)
	if err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}
	logger.Debug("Extracted archive",
		zap.String("format", string(result.Format)),
		zap.Int("files", result.Files),
		zap.Int("skipped", result.Skipped))

	root, err := filesystem.FindRoot(staging, manifest.FileName)
	if err != nil {
		return nil, fmt.Errorf("locate package root: %w", err)
	}
	pkg, err := manifest.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if err := paths.ValidatePackageID(pkg.ID()); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(pkg.ID())
	defer unlock()

	inst, err := r.build(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", pkg.ID(), err)
	}

	cat := pkg.Kind().Category()
	dest := r.deps.Layout.Package(r.root(cat), pkg.ID())
	if err := r.commit(root, dest, logger); err != nil {
		inst.Close()
		return nil, err
	}

	if old := r.swap(inst); old != nil {
		if err := old.Close(); err != nil {
			logger.Debug("Closing replaced context", zap.Error(err))
		}
	}
	r.updateGauges()

	info := r.info(inst.Manifest())
	return &info, nil
}

// commit moves staged into dest. An existing dest is moved aside first and
// restored if the move in fails.
func (r *Registry) commit(staged, dest string, logger *logging.Logger) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create package root: %w", err)
	}

	var aside string
	if _, err := os.Stat(dest); err == nil {
		aside = filepath.Join(r.deps.Layout.Staging(), "replaced-"+uuid.NewString())
		if err := os.Rename(dest, aside); err != nil {
			return fmt.Errorf("move previous install aside: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dest, err)
	}

	if err := os.Rename(staged, dest); err != nil {
		if aside != "" {
			if rerr := os.Rename(aside, dest); rerr != nil {
				logger.Error("Failed to restore previous install",
					zap.String("dir", dest),
					zap.String("aside", aside),
					zap.Error(rerr))
			}
		}
		return fmt.Errorf("move package into place: %w", err)
	}

	if aside != "" {
		if err := os.RemoveAll(aside); err != nil {
			logger.Warn("Failed to remove previous install", zap.String("dir", aside), zap.Error(err))
		}
	}
	return nil
}

// Remove deletes the package directory and instance for id. Removing a
// package that is not installed is a no-op.
func (r *Registry) Remove(ctx context.Context, pkgID string) error {
	if err := paths.ValidatePackageID(pkgID); err != nil {
		return err
	}
	if r.isClosed() {
		return ErrClosed
	}

	unlock := r.locks.Lock(pkgID)
	defer unlock()

	var removed []manifest.Category
	for _, cat := range categories {
		dir := r.deps.Layout.Package(r.root(cat), pkgID)
		inst := r.drop(cat, pkgID)
		_, statErr := os.Stat(dir)
		if inst == nil && os.IsNotExist(statErr) {
			continue
		}

		if inst != nil {
			inst.Close()
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		if r.deps.PurgeOnRemove {
			r.purge(ctx, cat, pkgID)
		}
		removed = append(removed, cat)
	}

	if len(removed) == 0 {
		r.logger.Debug("Remove of absent package", zap.String("id", pkgID))
		return nil
	}

	r.updateGauges()
	for _, cat := range removed {
		r.deps.Metrics.IncRemovals()
		r.publish(cat)
	}
	r.logger.Info("Removed package", zap.String("id", pkgID))
	return nil
}

// purge deletes settings, storage and keychain values owned by the package
func (r *Registry) purge(ctx context.Context, cat manifest.Category, pkgID string) {
	for _, prefix := range storage.PackagePrefixes(string(cat), pkgID) {
		store := r.deps.Preferences
		if strings.HasPrefix(prefix, storage.NamespaceKeychain+".") {
			store = r.deps.Keychain
		}
		if store == nil {
			continue
		}
		if err := storage.DeletePrefix(ctx, store, prefix); err != nil {
			r.logger.Warn("Failed to purge package data",
				zap.String("id", pkgID),
				zap.String("prefix", prefix),
				zap.Error(err))
		}
	}
}
