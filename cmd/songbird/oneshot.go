package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrTrintignant/Songbird/internal/discord/commands"
	"github.com/DrTrintignant/Songbird/internal/songbird"
)

// defaultHold is how long play and replay keep the process alive so the
// sound can finish.
const defaultHold = 15 * time.Second

// withApp loads the configuration, builds the service, runs fn and prints
// the status it returns, if any. The audio backend is only opened when fn
// plays.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	_, closeLog := setupLogging(cfg)
	defer closeLog()

	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if status := fn(cmd.Context(), a); status != "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
	}
	return err
}

// hold blocks for d, or until ctx ends, when a sound was started in this
// process.
func hold(ctx context.Context, a *app, d time.Duration, w io.Writer) {
	if d <= 0 {
		return
	}
	if _, ok := a.svc.Session().Current(); !ok {
		return
	}
	fmt.Fprintf(w, "playing for up to %s; press Ctrl+C to stop\n", d)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func newPlayCmd(opts *rootOptions) *cobra.Command {
	var (
		mode   string
		phrase string
		dur    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "play <description>",
		Short: "Play a sound matching a description",
		Long: `Play looks the description up in the local cache and falls back to
Freesound. With --bind the sound is also bound to a phrase.`,
		Example: `  songbird play "thunder rolling"
  songbird play --mode new "door creak" --bind "spooky door"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				status := a.svc.PlaySound(ctx, songbird.PlaySoundRequest{
					Description: strings.Join(args, " "),
					ReplayMode:  mode,
				})
				if phrase != "" {
					if _, ok := a.svc.Session().Current(); ok {
						status += "\n" + a.svc.BindSound(ctx, songbird.BindSoundRequest{Phrase: phrase})
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), status)
				hold(ctx, a, dur, cmd.ErrOrStderr())
				return ""
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "auto", "replay mode: auto, again or new")
	cmd.Flags().StringVar(&phrase, "bind", "", "bind the played sound to this phrase")
	cmd.Flags().DurationVar(&dur, "hold", defaultHold, "keep playing for this long before exiting (0 exits immediately)")
	return cmd
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var dur time.Duration
	cmd := &cobra.Command{
		Use:   "replay <phrase>",
		Short: "Play one of the sounds bound to a phrase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				status := a.svc.ReplayBound(ctx, songbird.ReplayBoundRequest{Phrase: strings.Join(args, " ")})
				fmt.Fprintln(cmd.OutOrStdout(), status)
				hold(ctx, a, dur, cmd.ErrOrStderr())
				return ""
			})
		},
	}
	cmd.Flags().DurationVar(&dur, "hold", defaultHold, "keep playing for this long before exiting (0 exits immediately)")
	return cmd
}

func newBindMultipleCmd(opts *rootOptions) *cobra.Command {
	var phrase string
	cmd := &cobra.Command{
		Use:   "bind-multiple --phrase <phrase> <sound names>",
		Short: "Bind cached sounds to a phrase",
		Long: `Bind-multiple binds cached sounds, given by the names list-cached
prints, to a phrase. Names may be separate arguments or one comma-separated
list.`,
		Example: `  songbird bind-multiple --phrase "storm" thunder_1234 "heavy rain"
  songbird bind-multiple --phrase "storm" "thunder_1234, heavy rain"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				return a.svc.BindMultiple(ctx, songbird.BindMultipleRequest{
					SoundNames: commands.SplitNames(strings.Join(args, ",")),
					Phrase:     phrase,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&phrase, "phrase", "p", "", "the phrase to bind the sounds to")
	_ = cmd.MarkFlagRequired("phrase")
	return cmd
}

func newListBoundCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-bound",
		Short: "List phrases and the sounds bound to them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				return a.svc.ListBound(ctx)
			})
		},
	}
}

func newUnbindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unbind <phrase>",
		Short: "Remove every sound bound to a phrase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				return a.svc.UnbindSound(ctx, songbird.UnbindRequest{Phrase: strings.Join(args, " ")})
			})
		},
	}
}

func newUnbindAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unbind-all",
		Short: "Remove all phrase bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				return a.svc.UnbindAll(ctx)
			})
		},
	}
}

func newListCachedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-cached",
		Short: "List the sounds in the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				return a.svc.ListCached(ctx)
			})
		},
	}
}

func newTestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Report the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) string {
				return a.svc.Test(ctx)
			})
		},
	}
}
