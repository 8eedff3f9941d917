//go:build unix

package validate

import (
	"github.com/dshills/plugconf/internal/schema"
	"golang.org/x/sys/unix"
)

func checkAccess(path string, a schema.Access) error {
	var mode uint32
	if a&schema.AccessRead != 0 {
		mode |= unix.R_OK
	}
	if a&schema.AccessWrite != 0 {
		mode |= unix.W_OK
	}
	return unix.Access(path, mode)
}
