// Package settings loads, sanitizes and saves a typed settings object.
//
// A Manager owns one live settings value of type T and a private copy of the
// defaults it was built with. On construction it either writes the defaults
// to a new file or loads the existing one. Trees read from disk can be
// reconciled with the defaults (see package sanitize) before being mapped to
// T, so stale or missing keys never reach the caller.
//
// A Manager is not safe for concurrent use, and nothing coordinates several
// processes writing the same file: the last writer wins.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/iancoleman/orderedmap"
	"github.com/spf13/afero"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/format/registry"
	"github.com/thirteen37/keepconf/internal/location"
	"github.com/thirteen37/keepconf/internal/mapper"
	"github.com/thirteen37/keepconf/internal/sanitize"
	"github.com/thirteen37/keepconf/internal/tree"
)

// State is the lifecycle stage of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateBootstrapping
	StateLoading
	StateReady
	StateSaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapping:
		return "bootstrapping"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Manager keeps a typed settings object in sync with a file.
type Manager[T any] struct {
	logger   hclog.Logger
	fs       afero.Fs
	paths    location.Paths
	format   format.Format
	codec    format.Handler
	mapper   mapper.Mapper[T]
	toggles  toggles
	parse    format.ParseOptions
	encode   format.SerializeOptions
	fileMode fs.FileMode

	defaults    T
	defaultTree *orderedmap.OrderedMap
	settings    T
	state       State
}

// NewStruct creates a Manager for a struct settings type, mapped with
// mapper.Struct.
func NewStruct[T any](defaults T, opts Options) (*Manager[T], error) {
	if tree.IsNil(defaults) {
		return nil, configError("%w", ErrMissingDefaults)
	}
	m, err := mapper.NewStruct[T]()
	if err != nil {
		return nil, configError("%w", err)
	}
	return New[T](defaults, m, opts)
}

// NewObject creates a Manager for a settings type that maps itself through
// mapper.TreeMarshaler and mapper.TreeUnmarshaler.
func NewObject[T mapper.TreeMarshaler, PT interface {
	*T
	mapper.TreeUnmarshaler
}](defaults T, opts Options) (*Manager[T], error) {
	if tree.IsNil(defaults) {
		return nil, configError("%w", ErrMissingDefaults)
	}
	m, err := mapper.NewObject[T, PT](defaults)
	if err != nil {
		return nil, configError("%w", err)
	}
	return New[T](defaults, m, opts)
}

// New creates a Manager using m to convert between T and trees.
//
// Every configuration problem is reported before any file is touched. Then,
// if the read path does not exist, the defaults are written to the write
// path without sanitizing; otherwise the file is loaded.
func New[T any](defaults T, m mapper.Mapper[T], opts Options) (*Manager[T], error) {
	start := time.Now()

	if tree.IsNil(defaults) {
		return nil, configError("%w", ErrMissingDefaults)
	}
	if m == nil {
		return nil, configError("a mapper is required")
	}

	paths, err := location.Resolve(opts.Path, opts.ReadPath, opts.WritePath)
	if err != nil {
		return nil, configError("%w", err)
	}

	tg, err := opts.resolveToggles()
	if err != nil {
		return nil, err
	}

	var f format.Format
	if opts.Format != "" {
		f, err = format.Parse(opts.Format)
	} else {
		f, err = format.Detect(paths.Read, paths.Write)
	}
	if err != nil {
		return nil, configError("%w", err)
	}
	if opts.StripComments && f != format.JSON {
		return nil, configError("comment stripping is only supported for json, not %s", f)
	}

	codecs := opts.Codecs
	if codecs == nil {
		codecs = registry.Default()
	}
	codec, err := codecs.Handler(f)
	if err != nil {
		return nil, configError("%w", err)
	}

	// Later changes to the caller's value must not reach the manager
	own, err := m.Copy(defaults)
	if err != nil {
		return nil, configError("failed to copy default settings: %w", err)
	}
	defaultTree, err := m.ToTree(own)
	if err != nil {
		return nil, configError("failed to map default settings: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	filesystem := opts.Fs
	if filesystem == nil {
		filesystem = afero.NewOsFs()
	}
	fileMode := opts.FileMode
	if fileMode == 0 {
		fileMode = DefaultFileMode
	}

	mgr := &Manager[T]{
		logger:      logger.Named("settings").With("path", paths.Read, "format", string(f)),
		fs:          filesystem,
		paths:       paths,
		format:      f,
		codec:       codec,
		mapper:      m,
		toggles:     tg,
		parse:       format.ParseOptions{StripComments: opts.StripComments},
		encode:      format.SerializeOptions{Indent: opts.Indent},
		fileMode:    fileMode,
		defaults:    own,
		defaultTree: defaultTree,
		state:       StateUninitialized,
	}

	mgr.logger.Debug("resolved settings configuration",
		"write_path", paths.Write,
		"autosave_on_exit", tg.autosaveOnExit,
		"sanitize_on_load", tg.sanitizeOnLoad,
		"sanitize_on_save", tg.sanitizeOnSave)

	if err := mgr.firstLoad(); err != nil {
		return nil, err
	}

	mgr.logger.Info("settings initialized", "elapsed", time.Since(start))
	return mgr, nil
}

// firstLoad bootstraps a missing file from the defaults or loads an existing one.
func (m *Manager[T]) firstLoad() error {
	exists, err := afero.Exists(m.fs, m.paths.Read)
	if err != nil {
		return m.fail("load", ErrLoad, m.paths.Read, err)
	}

	if exists {
		m.logger.Info("found settings file, loading")
		m.state = StateLoading
		return m.Load()
	}

	m.logger.Info("no settings file found, writing defaults", "write_path", m.paths.Write)
	m.state = StateBootstrapping
	fresh, err := m.mapper.Copy(m.defaults)
	if err != nil {
		return m.fail("load", ErrLoad, m.paths.Read, err)
	}
	m.settings = fresh
	// Defaults are conformant by definition
	return m.Save(SkipSanitize())
}

// Settings returns the live settings. Changes to it are kept in memory
// until the next Save.
func (m *Manager[T]) Settings() T {
	return m.settings
}

// SetSettings replaces the live settings without saving.
func (m *Manager[T]) SetSettings(v T) {
	m.settings = v
}

// Defaults returns a fresh copy of the default settings.
func (m *Manager[T]) Defaults() (T, error) {
	return m.mapper.Copy(m.defaults)
}

// RestoreDefaults replaces the live settings with a fresh copy of the
// defaults. Nothing is written until the next Save.
func (m *Manager[T]) RestoreDefaults() error {
	fresh, err := m.mapper.Copy(m.defaults)
	if err != nil {
		return m.fail("restore", ErrLoad, "", err)
	}
	m.settings = fresh
	m.logger.Debug("restored default settings")
	return nil
}

// Load replaces the live settings with the contents of the read path.
//
// A missing or empty file is not an error: the defaults are applied instead
// and a warning is logged. Read and decode failures return ErrLoad.
func (m *Manager[T]) Load(opts ...OpOption) error {
	if m.state == StateClosed {
		return m.fail("load", ErrClosed, m.paths.Read, nil)
	}
	cfg := applyOps(opts)
	m.state = StateLoading
	defer func() { m.state = StateReady }()

	t, err := m.readTree()
	if err != nil {
		return m.fail("load", ErrLoad, m.paths.Read, err)
	}
	if t == nil {
		m.logger.Warn("settings file is missing or empty, applying default settings")
		fresh, err := m.mapper.Copy(m.defaults)
		if err != nil {
			return m.fail("load", ErrLoad, m.paths.Read, err)
		}
		m.settings = fresh
		return nil
	}

	if m.toggles.sanitizeOnLoad && !cfg.skipSanitize {
		if _, err := m.sanitizeTree(t); err != nil {
			return m.fail("load", ErrLoad, m.paths.Read, err)
		}
	}

	v, err := m.mapper.FromTree(t)
	if err != nil {
		return m.fail("load", ErrLoad, m.paths.Read, err)
	}
	m.settings = v
	m.logger.Debug("settings loaded")
	return nil
}

// readTree reads and decodes the read path. It returns a nil tree when the
// file is missing or holds no settings.
func (m *Manager[T]) readTree() (*orderedmap.OrderedMap, error) {
	data, err := afero.ReadFile(m.fs, m.paths.Read)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	t, err := m.codec.Parse(data, m.parse)
	if err != nil {
		return nil, err
	}
	if tree.Len(t) == 0 {
		return nil, nil
	}
	return t, nil
}

// Save writes the live settings to the write path.
//
// With sanitize-on-save the live settings are sanitized first and replaced
// by the result. Shape errors are reported before the file is touched, and
// the file is replaced atomically so a failed save leaves the previous
// contents in place.
func (m *Manager[T]) Save(opts ...OpOption) error {
	if m.state == StateClosed {
		return m.fail("save", ErrClosed, m.paths.Write, nil)
	}
	cfg := applyOps(opts)
	prev := m.state
	m.state = StateSaving
	defer func() {
		if prev == StateBootstrapping || prev == StateUninitialized {
			prev = StateReady
		}
		m.state = prev
	}()

	t, err := m.mapper.ToTree(m.settings)
	if err != nil {
		return m.fail("save", ErrSave, m.paths.Write, err)
	}

	if m.toggles.sanitizeOnSave && !cfg.skipSanitize {
		if _, err := m.sanitizeTree(t); err != nil {
			return m.fail("save", ErrSave, m.paths.Write, err)
		}
		v, err := m.mapper.FromTree(t)
		if err != nil {
			return m.fail("save", ErrSave, m.paths.Write, sanitizeError(err))
		}
		m.settings = v
	}

	data, err := m.codec.Serialize(t, m.encode)
	if errors.Is(err, format.ErrShape) {
		return m.fail("save", ErrShape, m.paths.Write, err)
	}
	if err != nil {
		return m.fail("save", ErrSave, m.paths.Write, err)
	}

	if err := m.writeFile(data); err != nil {
		return m.fail("save", ErrSave, m.paths.Write, err)
	}
	m.logger.Debug("settings saved", "write_path", m.paths.Write, "bytes", len(data))
	return nil
}

// writeFile replaces the write path with data through a temporary file in
// the same directory.
func (m *Manager[T]) writeFile(data []byte) error {
	dir := filepath.Dir(m.paths.Write)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := afero.TempFile(m.fs, dir, "."+filepath.Base(m.paths.Write)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = m.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := m.fs.Chmod(tmpName, m.fileMode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := m.fs.Rename(tmpName, m.paths.Write); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	committed = true
	return nil
}

// Sanitize reconciles the live settings with the defaults: unknown keys are
// removed and missing ones are filled from the defaults. The applied diff is
// returned. Nothing is written.
//
// Only what the settings type can hold is seen here. Use FileDiff for the
// stored file.
func (m *Manager[T]) Sanitize() (sanitize.Diff, error) {
	t, err := m.mapper.ToTree(m.settings)
	if err != nil {
		return sanitize.Diff{}, m.fail("sanitize", ErrSanitize, "", err)
	}
	d, err := m.sanitizeTree(t)
	if err != nil {
		m.logger.Error("settings operation failed", "op", "sanitize", "error", err)
		return d, err
	}
	v, err := m.mapper.FromTree(t)
	if err != nil {
		return d, m.fail("sanitize", ErrSanitize, "", err)
	}
	m.settings = v
	return d, nil
}

// Diff reports what Sanitize would change in the live settings, without
// changing anything.
func (m *Manager[T]) Diff() (sanitize.Diff, error) {
	t, err := m.mapper.ToTree(m.settings)
	if err != nil {
		return sanitize.Diff{}, m.fail("diff", ErrSanitize, "", err)
	}
	return sanitize.Compute(t, m.defaultTree), nil
}

// FileDiff reports how the file at the read path differs from the defaults'
// schema. Keys the settings type cannot hold are reported too. A missing or
// empty file lacks every default key. Nothing is loaded or written.
func (m *Manager[T]) FileDiff() (sanitize.Diff, error) {
	if m.state == StateClosed {
		return sanitize.Diff{}, m.fail("diff", ErrClosed, m.paths.Read, nil)
	}
	t, err := m.readTree()
	if err != nil {
		return sanitize.Diff{}, m.fail("diff", ErrLoad, m.paths.Read, err)
	}
	if t == nil {
		t = tree.New()
	}
	d := sanitize.Compute(t, m.defaultTree)
	m.logger.Debug("computed file diff", "path", m.paths.Read,
		"remove", d.RemoveStrings(), "add", d.AddMap().Keys(), "mismatches", len(d.Mismatches))
	return d, nil
}

// sanitizeError marks err as a sanitize failure inside another operation.
func sanitizeError(err error) error {
	return &Error{Op: "sanitize", Kind: ErrSanitize, Err: err}
}

// sanitizeTree applies the diff against the defaults to t and logs it.
// Failures are returned as sanitize errors.
func (m *Manager[T]) sanitizeTree(t *orderedmap.OrderedMap) (sanitize.Diff, error) {
	d := sanitize.Compute(t, m.defaultTree)

	m.logger.Debug("computed sanitize diff", "remove", len(d.Remove), "add", len(d.Add))
	for _, p := range d.Remove {
		m.logger.Debug("removing key", "key", p.String())
	}
	for _, a := range d.Add {
		m.logger.Debug("adding key", "key", a.Path.String(), "value", a.Value)
	}
	for _, mm := range d.Mismatches {
		m.logger.Warn("settings value has a different shape than its default; keeping it",
			"key", mm.Path.String(), "kind", string(mm.Kind))
	}

	if err := sanitize.Apply(t, d); err != nil {
		return d, sanitizeError(err)
	}
	return d, nil
}

// Update runs fn on the live settings and then saves, whether fn returns
// normally, returns an error or panics. A panic is re-raised after the save.
// Errors from fn and from saving are joined.
func (m *Manager[T]) Update(fn func(*T) error) (err error) {
	defer func() {
		r := recover()
		saveErr := m.Save()
		if r != nil {
			if saveErr != nil {
				m.logger.Error("failed to save settings after panic", "error", saveErr)
			}
			panic(r)
		}
		err = errors.Join(err, saveErr)
	}()
	return fn(&m.settings)
}

// Close ends the Manager's life. With autosave on exit it saves first.
// Applications register Close with their shutdown hooks. Closing twice is
// a no-op.
func (m *Manager[T]) Close() error {
	if m.state == StateClosed {
		return nil
	}
	var err error
	if m.toggles.autosaveOnExit {
		m.logger.Debug("saving settings on close")
		err = m.Save()
	}
	m.state = StateClosed
	return err
}

// Format returns the file format in use.
func (m *Manager[T]) Format() format.Format {
	return m.format
}

// ReadPath returns the absolute path settings are loaded from.
func (m *Manager[T]) ReadPath() string {
	return m.paths.Read
}

// WritePath returns the absolute path settings are saved to.
func (m *Manager[T]) WritePath() string {
	return m.paths.Write
}

// State returns the current lifecycle stage.
func (m *Manager[T]) State() State {
	return m.state
}

// fail logs and returns an *Error.
func (m *Manager[T]) fail(op string, kind error, path string, err error) error {
	e := &Error{Op: op, Kind: kind, Path: path, Err: err}
	m.logger.Error("settings operation failed", "op", op, "error", e)
	return e
}
