package kernel

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/beans"
)

// RequestReload queues a reload for the next Update. With no types every
// loaded class is reloaded and file-backed manifests are read again.
// Safe to call from any goroutine.
func (k *Kernel) RequestReload(types ...reflect.Type) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(types) == 0 {
		k.reloadAll = true
		return
	}
	k.reloads = append(k.reloads, types...)
}

// ReloadPending reports whether a reload request waits for the next Update
func (k *Kernel) ReloadPending() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reloadAll || len(k.reloads) > 0
}

func (k *Kernel) drainReloads() error {
	k.mu.Lock()
	all, types := k.reloadAll, k.reloads
	k.reloadAll, k.reloads = false, nil
	k.mu.Unlock()

	switch {
	case all:
		if err := k.rereadManifests(); err != nil {
			k.logger.Error("manifest reload failed", zap.Error(err))
		}
		return k.Reload()
	case len(types) > 0:
		return k.Reload(types...)
	}
	return nil
}

func (k *Kernel) rereadManifests() error {
	var errs []error
	for i, src := range k.manifests {
		if src.path == "" {
			continue
		}
		m, err := beans.LoadManifest(src.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		k.manifests[i].manifest = m
	}
	return errors.Join(errs...)
}

// Reload re-extracts the given classes, or every class in the table, and
// reloads their code info in place. Instances already scheduled keep the
// phase handlers they resolved to; only code info and beans change.
func (k *Kernel) Reload(types ...reflect.Type) error {
	pass := uuid.New()
	logger := k.logger.With(zap.Stringer("pass", pass))
	if len(types) == 0 {
		types = k.Table().Types()
	}

	var errs []error
	classes, err := k.extractor.ExtractAll(types...)
	if err != nil {
		errs = append(errs, fmt.Errorf("reload: %w", err))
	}
	reloaded := 0
	for _, class := range classes {
		if err := k.applyManifests(class); err != nil {
			logger.Warn("manifest beans not applied", zap.String("class", class.FullName), zap.Error(err))
		}
		if _, ok := k.loaders.CategoryOf(class); !ok {
			continue
		}
		if !k.loaders.Load(class, true) {
			errs = append(errs, fmt.Errorf("reload: %w: %s", ErrClassRejected, class.FullName))
			continue
		}
		reloaded++
	}
	k.beans.Reset()

	logger.Info("reload complete", zap.Int("classes", len(types)), zap.Int("reloaded", reloaded), zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}
