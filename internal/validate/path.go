package validate

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dshills/plugconf/internal/schema"
	"github.com/dshills/plugconf/internal/value"
)

func (v *Validator) checkPath(subject *value.Value, d *schema.Path, pos value.Position) *ValidationError {
	p, err := subject.AsString()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	if p == "" {
		return violation(subject, d, pos, "empty path")
	}
	if d.Absolute != nil {
		abs := filepath.IsAbs(p)
		if *d.Absolute && !abs {
			return violation(subject, d, pos, "relative path")
		}
		if !*d.Absolute && abs {
			return violation(subject, d, pos, "absolute path")
		}
	}

	info, err := os.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		if d.MustExist {
			return violation(subject, d, pos, "path not found")
		}
		return nil
	}
	if err != nil {
		return violation(subject, d, pos, "could not get path metadata: "+err.Error())
	}

	if d.FileType != schema.FileTypeSymlink && info.Mode()&fs.ModeSymlink != 0 {
		if info, err = os.Stat(p); err != nil {
			return violation(subject, d, pos, "could not follow symlink: "+err.Error())
		}
	}
	switch d.FileType {
	case schema.FileTypeFile:
		if !info.Mode().IsRegular() {
			return violation(subject, d, pos, "improper file type")
		}
	case schema.FileTypeDirectory:
		if !info.IsDir() {
			return violation(subject, d, pos, "improper file type")
		}
	case schema.FileTypeSymlink:
		if info.Mode()&fs.ModeSymlink == 0 {
			return violation(subject, d, pos, "improper file type")
		}
	}

	if d.Access != 0 {
		if err := checkAccess(p, d.Access); err != nil {
			return violation(subject, d, pos, "insufficient access: "+err.Error())
		}
	}
	return nil
}
