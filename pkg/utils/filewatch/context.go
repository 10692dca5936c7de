// Package filewatch ties lifetime of contexts to files.
package filewatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrModified is the cause of contexts cancelled by UntilModified.
var ErrModified = errors.New("file is modified")

// UntilModified returns a context cancelled when one of paths is written, created, removed or renamed.
//
// Changes of file mode only are ignored. context.Cause of the returned context tells
// which file has been modified, wrapping ErrModified.
//
// # Args
//
// - ctx: parent context
//
// - paths: files or directories to be watched.
//
// # Returns
//
// - context.Context
//
// - func(): cancels the context and stops watching.
//
// - error: when it cannot start watching. Then, the context and the func are nil.
func UntilModified(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, err
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				cancel(fmt.Errorf("%w: %s (%s)", ErrModified, ev.Name, ev.Op))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
