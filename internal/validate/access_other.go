//go:build !unix

package validate

import (
	"errors"
	"os"

	"github.com/dshills/plugconf/internal/schema"
)

// checkAccess falls back to permission bits where access(2) is unavailable.
func checkAccess(path string, a schema.Access) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	perm := info.Mode().Perm()
	if a&schema.AccessRead != 0 && perm&0o444 == 0 {
		return errors.New("not readable")
	}
	if a&schema.AccessWrite != 0 && perm&0o222 == 0 {
		return errors.New("not writable")
	}
	return nil
}
