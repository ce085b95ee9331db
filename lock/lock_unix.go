//go:build unix

package lock

import (
	"errors"
	"os"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"

	"github.com/byte4ever/hashit/store"
)

func fd(fi *os.File, path string) (int, error) {
	n, err := safecast.Conv[int](fi.Fd())
	if err != nil {
		return 0, store.IOError(path, err)
	}

	return n, nil
}

func tryLock(fi *os.File, path string) error {
	n, err := fd(fi, path)
	if err != nil {
		return err
	}

	err = unix.Flock(n, unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrLocked
	}

	if err != nil {
		return store.IOError(path, err)
	}

	return nil
}

func unlock(fi *os.File, path string) error {
	n, err := fd(fi, path)
	if err != nil {
		return err
	}

	if err := unix.Flock(n, unix.LOCK_UN); err != nil {
		return store.IOError(path, err)
	}

	return nil
}
