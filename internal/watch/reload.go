package watch

import (
	"reflect"

	"go.uber.org/zap"
)

// ReloadRequester queues a hot reload; implemented by kernel.Kernel
type ReloadRequester interface {
	RequestReload(types ...reflect.Type)
}

// WatchManifests starts a watcher over the given manifest files that requests
// a full reload whenever one of them changes. The reload itself runs on the
// requester's next tick.
func WatchManifests(r ReloadRequester, opts Options) (*FileWatcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := NewFileWatcher(opts, func(files []string) error {
		logger.Info("manifests changed, reload requested", zap.Strings("files", files))
		r.RequestReload()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := fw.Start(); err != nil {
		fw.Stop()
		return nil, err
	}
	return fw, nil
}
