package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/settings"
)

func newConvertCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert <output>",
		Short: "Write the current settings to another file and format",
		Long: `Write the current settings to another file. The output format comes from
--to or, when omitted, from the output file's extension.

Example:
  keepconf --path backend-config.yaml convert backend-config.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, a, args[0], to)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Output format (json, yaml, toml or ini)")
	return cmd
}

func runConvert(cmd *cobra.Command, a *app, out, to string) error {
	var (
		f   format.Format
		err error
	)
	if to != "" {
		f, err = format.Parse(to)
	} else {
		f, err = format.Detect(out, out)
	}
	if err != nil {
		return err
	}

	t, err := a.tree()
	if err != nil {
		return err
	}
	data, err := encode(t, f)
	if err != nil {
		return err
	}

	if err := a.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(a.fs, out, data, settings.DefaultFileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	abs, err := filepath.Abs(out)
	if err != nil {
		abs = out
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s settings to %s\n", f, abs)
	return nil
}
