package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thirteen37/keepconf/internal/appsettings"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/path"
	"github.com/thirteen37/keepconf/internal/tree"
)

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and save",
		Long: `Change the value stored under an existing key and save the file.

The value is read like an INI value: true and false become booleans, numbers
become numbers, an empty string clears the setting, and anything else is
kept as text. Unknown keys and sections cannot be set, and a change that
leaves the settings invalid is refused.

Example:
  keepconf set database.port 3307`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, a, args[0], args[1])
		},
	}
}

func runSet(cmd *cobra.Command, a *app, key, raw string) error {
	p, err := path.Parse(key)
	if err != nil {
		return fmt.Errorf("invalid key %q: %w", key, err)
	}
	mgr, err := a.open()
	if err != nil {
		return err
	}

	value := format.CoerceScalar(raw)
	err = mgr.Update(func(s *appsettings.AppSettings) error {
		t, err := a.mapper.ToTree(*s)
		if err != nil {
			return err
		}
		current, ok := tree.Get(t, p)
		if !ok {
			return fmt.Errorf("unknown key %s", p)
		}
		if tree.IsMap(current) {
			return fmt.Errorf("%s is a section, not a setting", p)
		}
		if err := tree.Set(t, p, value); err != nil {
			return err
		}
		updated, err := a.mapper.FromTree(t)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", p, err)
		}
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("invalid value for %s: %w", p, err)
		}
		*s = updated
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", p, format.ScalarString(value))
	return nil
}
