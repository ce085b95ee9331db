//go:build !unix

package lock

import (
	"os"

	"github.com/byte4ever/hashit/store"
)

func tryLock(_ *os.File, path string) error {
	return store.NotImplemented(path, "flock")
}

func unlock(_ *os.File, path string) error {
	return store.NotImplemented(path, "flock")
}
