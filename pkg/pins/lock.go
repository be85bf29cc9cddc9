package pins

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// fileLock holds an exclusive advisory lock on a sidecar file next to the
// pins file itself, serializing Load/mutate/Save across concurrent cordage
// invocations against the same workspace (spec.md §5 "Shared resources": the
// pins file is accessed under an exclusive lock on its parent directory for
// the duration of a load/mutate/save sequence).
type fileLock struct {
	f *os.File
}

func lockPathFor(pinsPath string) string {
	return pinsPath + ".lock"
}

// acquireLock blocks until it holds an exclusive lock on pinsPath's sidecar
// lock file, creating the pins directory first if necessary.
func acquireLock(pinsPath string) (*fileLock, error) {
	dir := filepath.Dir(pinsPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pins lock: %w", err)
	}

	path := lockPathFor(pinsPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pins lock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("pins lock: flock %s: %w", path, err)
	}
	return &fileLock{f: f}, nil
}

// release unlocks and closes the lock file. Safe to call on a nil receiver
// and more than once.
func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return fmt.Errorf("pins lock: unlock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("pins lock: close: %w", closeErr)
	}
	return nil
}
