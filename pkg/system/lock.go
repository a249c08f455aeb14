// pkg/system/lock.go
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenk/backoff"
	"golang.org/x/sys/unix"

	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/registry"
)

// LockPath returns the advisory lock file of the basedir
func (m *Manager) LockPath() string {
	return filepath.Join(m.registry.Dir(registry.FileList), LockFile)
}

// lock serialises mutating operations on the basedir: first between
// goroutines sharing this Manager, then between processes through an
// exclusive flock. The returned func releases both.
func (m *Manager) lock(ctx context.Context) (func(), error) {
	m.mu.Lock()

	release, err := m.flock(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	return func() {
		release()
		m.mu.Unlock()
	}, nil
}

func (m *Manager) flock(ctx context.Context) (func(), error) {
	path := m.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating lock directory: %v", core.ErrIOError, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening lock: %v", core.ErrIOError, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = m.config.LockTimeout
	b.Reset()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("%w: flock %s: %v", core.ErrIOError, path, err)
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			f.Close()
			return nil, core.NewError("lock", m.basedir, core.ErrLocked)
		}
		m.logger.Printf("  Waiting %v for lock %s", wait, path)

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
