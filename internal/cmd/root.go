// Package cmd provides the CLI commands for keepconf.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thirteen37/keepconf/internal/appsettings"
	"github.com/thirteen37/keepconf/internal/lifecycle"
	"github.com/thirteen37/keepconf/internal/mapper"
	"github.com/thirteen37/keepconf/internal/settings"
)

// app carries the state shared by every command of one invocation.
type app struct {
	fs    afero.Fs
	hooks *lifecycle.Hooks

	path          string
	readPath      string
	writePath     string
	format        string
	sanitize      bool
	stripComments bool
	logLevel      string

	// sanitizeOnLoad is set by commands that must read files with unknown
	// or missing keys.
	sanitizeOnLoad bool

	logger hclog.Logger
	mapper *mapper.Struct[appsettings.AppSettings]
	mgr    *settings.Manager[appsettings.AppSettings]
}

// NewRootCmd builds the command tree. All file access goes through fs and
// the settings manager is registered with hooks once opened.
func NewRootCmd(fs afero.Fs, hooks *lifecycle.Hooks) *cobra.Command {
	a := &app{fs: fs, hooks: hooks}

	rootCmd := &cobra.Command{
		Use:   "keepconf",
		Short: "Inspect and maintain application settings files",
		Long: `keepconf manages an application settings file in JSON, YAML, TOML or INI.

The file is created from built-in defaults when it does not exist. Stored
settings can be compared with the defaults, sanitized (unknown keys removed,
missing keys restored), edited key by key and converted between formats.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = hclog.New(&hclog.LoggerOptions{
				Name:   "keepconf",
				Level:  hclog.LevelFromString(a.logLevel),
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.path, "path", "p", "", "Settings file used for reading and writing (default "+appsettings.DefaultPath+")")
	flags.StringVar(&a.readPath, "read", "", "Settings file to read from (requires --write)")
	flags.StringVar(&a.writePath, "write", "", "Settings file to write to (requires --read)")
	flags.StringVarP(&a.format, "format", "f", "", "File format: json, yaml, toml or ini (default: from the extension)")
	flags.BoolVar(&a.sanitize, "sanitize", false, "Sanitize settings against the defaults on load and save")
	flags.BoolVar(&a.stripComments, "strip-comments", false, "Accept // comments in JSON files")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level: trace, debug, info, warn or error")

	rootCmd.AddCommand(
		newInitCmd(a),
		newShowCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newKeysCmd(a),
		newDiffCmd(a),
		newSanitizeCmd(a),
		newResetCmd(a),
		newConvertCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

// Execute runs the root command against the OS filesystem.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hooks lifecycle.Hooks
	err := NewRootCmd(afero.NewOsFs(), &hooks).ExecuteContext(ctx)
	if hookErr := hooks.Run(); hookErr != nil {
		fmt.Fprintf(os.Stderr, "keepconf: shutdown: %v\n", hookErr)
		if err == nil {
			err = hookErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// open creates the settings manager, bootstrapping the file if needed.
func (a *app) open() (*settings.Manager[appsettings.AppSettings], error) {
	if a.mgr != nil {
		return a.mgr, nil
	}

	m, err := mapper.NewStruct[appsettings.AppSettings]()
	if err != nil {
		return nil, err
	}

	logger := a.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	mgr, err := appsettings.Open(settings.Options{
		Path:               a.path,
		ReadPath:           a.readPath,
		WritePath:          a.writePath,
		Format:             a.format,
		AutoSanitize:       a.sanitize,
		AutoSanitizeOnLoad: a.sanitizeOnLoad && !a.sanitize,
		StripComments:      a.stripComments,
		Logger:             logger,
		Fs:                 a.fs,
	})
	if err != nil {
		return nil, err
	}

	a.mapper = m
	a.mgr = mgr
	if a.hooks != nil {
		a.hooks.Add("settings", mgr.Close)
	}
	return mgr, nil
}
