// Package location resolves where a settings file is read from and written to.
package location

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrMissingPath is returned when neither a single path nor a complete
	// read/write pair is given.
	ErrMissingPath = errors.New("missing settings path")

	// ErrTooManyPaths is returned when both a single path and a read/write
	// pair are given.
	ErrTooManyPaths = errors.New("too many settings paths")
)

// Paths holds the resolved absolute read and write locations.
// They are equal when a single path was given.
type Paths struct {
	Read  string
	Write string
}

// Same reports whether reads and writes go to the same file.
func (p Paths) Same() bool {
	return p.Read == p.Write
}

// Resolve turns either path, or the readPath/writePath pair, into absolute
// paths. It performs no I/O.
func Resolve(path, readPath, writePath string) (Paths, error) {
	pairGiven := readPath != "" || writePath != ""

	switch {
	case path != "" && pairGiven:
		return Paths{}, fmt.Errorf("%w: give either a path or a read/write pair, not both", ErrTooManyPaths)
	case path != "":
		abs, err := absolute(path)
		if err != nil {
			return Paths{}, err
		}
		return Paths{Read: abs, Write: abs}, nil
	case readPath == "" || writePath == "":
		return Paths{}, fmt.Errorf("%w: give a path or both a read path and a write path", ErrMissingPath)
	}

	read, err := absolute(readPath)
	if err != nil {
		return Paths{}, err
	}
	write, err := absolute(writePath)
	if err != nil {
		return Paths{}, err
	}
	return Paths{Read: read, Write: write}, nil
}

func absolute(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", p, err)
	}
	return abs, nil
}
