package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thirteen37/keepconf/internal/appsettings"
	"github.com/thirteen37/keepconf/internal/location"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the settings file from the defaults if it does not exist",
		Long: `Create the settings file from the built-in defaults when it does not
exist yet. An existing file is loaded and left untouched.

Example:
  keepconf init --path ./backend-config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a)
		},
	}
}

func runInit(cmd *cobra.Command, a *app) error {
	p := a.path
	if p == "" && a.readPath == "" && a.writePath == "" {
		p = appsettings.DefaultPath
	}
	paths, err := location.Resolve(p, a.readPath, a.writePath)
	if err != nil {
		return err
	}
	existed, err := afero.Exists(a.fs, paths.Read)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", paths.Read, err)
	}

	mgr, err := a.open()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case !existed:
		fmt.Fprintf(out, "Created %s settings: %s\n", mgr.Format(), mgr.WritePath())
	case paths.Same():
		fmt.Fprintf(out, "Using existing %s settings: %s\n", mgr.Format(), mgr.ReadPath())
	default:
		fmt.Fprintf(out, "Using existing %s settings: %s (saving to %s)\n", mgr.Format(), mgr.ReadPath(), mgr.WritePath())
	}

	if err := mgr.Settings().Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", line)
		}
	}
	return nil
}
