package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/sanitize"
	"github.com/thirteen37/keepconf/internal/tree"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show how the stored settings differ from the defaults' schema",
		Long: `Show the keys of the stored file that sanitize would remove (-) or add (+),
and the keys whose stored value has a different shape than the default (!).
Nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.sanitizeOnLoad = true
			mgr, err := a.open()
			if err != nil {
				return err
			}
			d, err := mgr.FileDiff()
			if err != nil {
				return err
			}
			printDiff(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newSanitizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize",
		Short: "Remove unknown keys, restore missing ones and save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.sanitizeOnLoad = true
			mgr, err := a.open()
			if err != nil {
				return err
			}
			// The file is read before saving, and the settings were sanitized
			// when they were loaded
			d, err := mgr.FileDiff()
			if err != nil {
				return err
			}
			if err := mgr.Save(); err != nil {
				return err
			}
			printDiff(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace the stored settings with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.open()
			if err != nil {
				return err
			}
			if err := mgr.RestoreDefaults(); err != nil {
				return err
			}
			if err := mgr.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored defaults in %s\n", mgr.WritePath())
			return nil
		},
	}
}

// printDiff writes one line per change.
func printDiff(w io.Writer, d sanitize.Diff) {
	if d.Empty() && len(d.Mismatches) == 0 {
		fmt.Fprintln(w, "Settings match the defaults' schema")
		return
	}
	for _, p := range d.Remove {
		fmt.Fprintf(w, "- %s\n", p)
	}
	for _, add := range d.Add {
		if tree.IsMap(add.Value) {
			fmt.Fprintf(w, "+ %s (section)\n", add.Path)
			continue
		}
		fmt.Fprintf(w, "+ %s = %s\n", add.Path, format.ScalarString(add.Value))
	}
	for _, m := range d.Mismatches {
		fmt.Fprintf(w, "! %s (%s)\n", m.Path, m.Kind)
	}
}
