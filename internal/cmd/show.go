package cmd

import (
	"fmt"

	"github.com/iancoleman/orderedmap"
	"github.com/spf13/cobra"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/format/json"
	"github.com/thirteen37/keepconf/internal/format/registry"
	"github.com/thirteen37/keepconf/internal/path"
	"github.com/thirteen37/keepconf/internal/tree"
)

func newShowCmd(a *app) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Long: `Print the current settings, encoded in the format of the settings file or
in the format given with --as.

Example:
  keepconf show --as json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.tree()
			if err != nil {
				return err
			}
			f := a.mgr.Format()
			if as != "" {
				if f, err = format.Parse(as); err != nil {
					return err
				}
			}
			data, err := encode(t, f)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "Output format (json, yaml, toml or ini)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Long: `Print the value stored under a key. Keys are dotted (auth.secret_key) or
JSON arrays (["auth","secret_key"]). Sections are printed as JSON.

Example:
  keepconf get auth.access_token_expire_minutes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := path.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}
			t, err := a.tree()
			if err != nil {
				return err
			}
			v, ok := tree.Get(t, p)
			if !ok {
				return fmt.Errorf("unknown key %s", p)
			}

			out := cmd.OutOrStdout()
			switch val := v.(type) {
			case *orderedmap.OrderedMap:
				data, err := json.New().Serialize(val, format.SerializeOptions{})
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			case []any:
				for _, item := range val {
					fmt.Fprintln(out, format.ScalarString(item))
				}
				return nil
			}
			fmt.Fprintln(out, format.ScalarString(v))
			return nil
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every key of the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.tree()
			if err != nil {
				return err
			}
			for _, p := range tree.Keys(t) {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

// tree opens the manager and returns the live settings as a tree.
func (a *app) tree() (*orderedmap.OrderedMap, error) {
	mgr, err := a.open()
	if err != nil {
		return nil, err
	}
	return a.mapper.ToTree(mgr.Settings())
}

// encode serializes t with the default codec for f.
func encode(t *orderedmap.OrderedMap, f format.Format) ([]byte, error) {
	h, err := registry.Default().Handler(f)
	if err != nil {
		return nil, err
	}
	return h.Serialize(t, format.SerializeOptions{})
}
