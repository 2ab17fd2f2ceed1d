package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload and print the settings whenever the file changes",
		Long: `Watch the settings file and reload it after every change, printing the
settings as loaded (sanitized first when --sanitize is set). A file that
fails to load is reported and watching continues. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a)
		},
	}
}

func runWatch(cmd *cobra.Command, a *app) error {
	mgr, err := a.open()
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Saves replace the file by renaming, so watch the directory
	target := mgr.ReadPath()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s\n", target)

	reload := func() error {
		if err := mgr.Load(); err != nil {
			return err
		}
		t, err := a.tree()
		if err != nil {
			return err
		}
		data, err := encode(t, mgr.Format())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "--- reloaded %s\n", target)
		_, err = out.Write(data)
		return err
	}

	return watchLoop(cmd.Context(), w.Events, w.Errors, target, reload, func(err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "keepconf: %v\n", err)
		a.logger.Warn("reload failed", "error", err)
	})
}

// watchLoop calls reload for every write or create of target until ctx is
// done or the event channel closes. Reload and watcher errors go to report.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	target string, reload func() error, report func(error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := reload(); err != nil {
				report(err)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			report(err)
		}
	}
}
