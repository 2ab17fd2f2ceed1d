package settings

import (
	"errors"
	"fmt"

	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/location"
	"github.com/thirteen37/keepconf/internal/mapper"
)

// Error kinds. Every error returned by a Manager is an *Error whose Kind is
// one of these, so callers can test with errors.Is(err, settings.ErrSave).
var (
	// ErrConfig is the kind of every construction-time error.
	ErrConfig = errors.New("invalid settings configuration")

	// ErrShape is returned when the settings cannot be written in the
	// configured format (INI allows only sections of scalars).
	ErrShape = format.ErrShape

	// ErrLoad is returned when reading or decoding the settings file fails,
	// or when the defaults cannot be copied into place.
	ErrLoad = errors.New("failed to load settings")

	// ErrSave is returned when encoding or writing the settings file fails.
	ErrSave = errors.New("failed to save settings")

	// ErrSanitize is returned when the settings cannot be reconciled with
	// the defaults.
	ErrSanitize = errors.New("failed to sanitize settings")

	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("settings manager is closed")
)

// Causes of ErrConfig.
var (
	ErrMissingPath        = location.ErrMissingPath
	ErrTooManyPaths       = location.ErrTooManyPaths
	ErrUnsupportedFormat  = format.ErrUnsupportedFormat
	ErrMissingDependency  = format.ErrMissingDependency
	ErrUnsupportedType    = mapper.ErrUnsupportedType
	ErrMissingDefaults    = errors.New("default settings are required")
	ErrConflictingToggles = errors.New("a composite toggle cannot be combined with the toggles it sets")
)

// Error describes a failed Manager operation.
type Error struct {
	// Op is the operation that failed: "new", "load", "save", "sanitize",
	// "diff" or "restore". A sanitize failure during load or save is a
	// sanitize Error wrapped in the load or save Error.
	Op string
	// Kind is one of the Err* kinds above.
	Kind error
	// Path is the file involved, if any.
	Path string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func configError(msg string, args ...any) error {
	return &Error{Op: "new", Kind: ErrConfig, Err: fmt.Errorf(msg, args...)}
}
