package settings

import (
	"io/fs"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/thirteen37/keepconf/internal/format/registry"
)

// DefaultFileMode is the permission given to written settings files.
const DefaultFileMode fs.FileMode = 0o644

// Options configures a Manager.
type Options struct {
	// Path is used for both reading and writing. Set either Path or both
	// ReadPath and WritePath.
	Path      string
	ReadPath  string
	WritePath string

	// Format names the file format explicitly (json, yaml, toml or ini).
	// When empty it is inferred from the shared extension of the paths.
	Format string

	// Autosave turns on AutosaveOnExit. Setting both is an error.
	Autosave bool
	// AutosaveOnExit makes Close save the settings.
	AutosaveOnExit bool

	// AutoSanitize turns on AutoSanitizeOnLoad and AutoSanitizeOnSave.
	// Setting it together with either of them is an error.
	AutoSanitize       bool
	AutoSanitizeOnLoad bool
	AutoSanitizeOnSave bool

	// StripComments accepts // comments in JSON files. Only valid for JSON.
	StripComments bool

	// Indent overrides the codec's default indentation.
	Indent string

	// FileMode is the permission of written files. Defaults to DefaultFileMode.
	FileMode fs.FileMode

	// Logger receives the manager's logs. Defaults to a null logger.
	Logger hclog.Logger

	// Fs is the filesystem used for all I/O. Defaults to the OS filesystem.
	Fs afero.Fs

	// Codecs supplies the format handlers. Defaults to registry.Default().
	Codecs *registry.Registry
}

// toggles are the effective switches after composite expansion.
type toggles struct {
	autosaveOnExit bool
	sanitizeOnLoad bool
	sanitizeOnSave bool
}

// compositeToggle expands a composite switch into the individual ones it
// stands for. A composite combined with any individual switch is rejected.
func compositeToggle(composite bool, individual ...bool) ([]bool, error) {
	if !composite {
		return individual, nil
	}
	out := make([]bool, len(individual))
	for i, on := range individual {
		if on {
			return nil, ErrConflictingToggles
		}
		out[i] = true
	}
	return out, nil
}

// resolveToggles applies both composite switches of o.
func (o Options) resolveToggles() (toggles, error) {
	exit, err := compositeToggle(o.Autosave, o.AutosaveOnExit)
	if err != nil {
		return toggles{}, configError("autosave and autosave-on-exit: %w", err)
	}
	sanitize, err := compositeToggle(o.AutoSanitize, o.AutoSanitizeOnLoad, o.AutoSanitizeOnSave)
	if err != nil {
		return toggles{}, configError("auto-sanitize and auto-sanitize-on-load/save: %w", err)
	}
	return toggles{
		autosaveOnExit: exit[0],
		sanitizeOnLoad: sanitize[0],
		sanitizeOnSave: sanitize[1],
	}, nil
}

// OpOption adjusts a single Load or Save call.
type OpOption func(*opConfig)

type opConfig struct {
	skipSanitize bool
}

// SkipSanitize disables automatic sanitizing for one call.
func SkipSanitize() OpOption {
	return func(c *opConfig) {
		c.skipSanitize = true
	}
}

func applyOps(opts []OpOption) opConfig {
	var c opConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}
