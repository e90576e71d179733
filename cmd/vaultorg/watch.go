package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
	"github.com/fyrsmithlabs/vaultorg/internal/watch"
)

var (
	watchInbox string
	watchNoRun bool
	watchPlain bool
)

// watchCmd keeps the inbox report current
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-cluster the inbox whenever its notes change",
	Long: `Watch the inbox folder. After each quiet period following a change, the
changed notes are re-indexed and re-embedded and the inbox report is
printed again. Stop with Ctrl-C.

Examples:
  vaultorg watch
  vaultorg watch -i Unsorted`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchInbox, "inbox", "i", "Inbox", "inbox folder, relative to the vault root")
	watchCmd.Flags().BoolVar(&watchNoRun, "no-initial", false, "skip the report at startup")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "disable colors and boxes")
}

func runWatch(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	if embeddingsFile != "" {
		return errors.New("watch re-embeds changed notes and needs the store; drop --embeddings")
	}

	opts := a.inboxOptions()
	overrideString(cmd, "inbox", &opts.Inbox, watchInbox)

	root, err := a.vaultRoot()
	if err != nil {
		return err
	}
	matcher, err := a.ignoreMatcher(root)
	if err != nil {
		return err
	}

	w, err := watch.New(filepath.Join(root, filepath.FromSlash(opts.Inbox)), watch.Options{
		Root:       root,
		Debounce:   a.cfg.Watch.Debounce.Duration(),
		Extensions: a.cfg.Vault.Extensions,
		Ignore:     matcher,
	}, a.logger.Underlying())
	if err != nil {
		return err
	}

	ctx := a.ctx(cmd)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", opts.Inbox)
	if !watchNoRun {
		a.refresh(cmd, opts, nil)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			a.logger.Info(ctx, "inbox changed", zap.Strings("paths", ev.Paths))
			a.refresh(cmd, opts, ev.Paths)
		}
	}
}

// refresh drops changed notes from the store, indexes and embeds them
// again, then prints the inbox report. Failures are logged so the watch
// keeps running.
func (a *app) refresh(cmd *cobra.Command, opts organizer.InboxOptions, changed []string) {
	ctx := a.ctx(cmd)
	if err := a.reindex(ctx, changed); err != nil {
		a.logger.Error(ctx, "refreshing inbox notes failed", zap.Error(err))
		return
	}

	rep, err := a.organizeInbox(ctx, opts)
	if errors.Is(err, organizer.ErrEmptyInbox) {
		fmt.Fprintf(cmd.OutOrStdout(), "Inbox %s is empty\n", opts.Inbox)
		return
	}
	if err != nil {
		a.logger.Error(ctx, "inbox analysis failed", zap.Error(err))
		return
	}
	renderInbox(report.NewTextRenderer(cmd.OutOrStdout(), watchPlain), rep)
}

func (a *app) reindex(ctx context.Context, changed []string) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		if err := st.Delete(ctx, changed...); err != nil {
			return err
		}
	}
	if _, err := a.index(ctx, false); err != nil {
		return err
	}
	stats, _, err := a.embed(ctx, false)
	if err != nil {
		return err
	}
	if len(stats.Failed) > 0 {
		a.logger.Warn(ctx, "some notes were not embedded", zap.Strings("ids", stats.Failed))
	}
	return nil
}
