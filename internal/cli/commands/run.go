package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/internal/watch"
)

// DefaultTickInterval is the run loop period when --interval is not set
const DefaultTickInterval = 50 * time.Millisecond

// loopOptions configure runLoop
type loopOptions struct {
	manifests []string
	interval  time.Duration
	duration  time.Duration // zero runs until interrupted
	watch     bool          // force manifest watching on
}

// NewRunCommand creates the run command
func NewRunCommand(flags *globalFlags) *cobra.Command {
	opts := loopOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel and run the tick loop",
		Long: `Boot the kernel with the configured bean manifests and tick it until
interrupted.

Manifest hot reload follows watch.enabled in the configuration; use
'nucleus watch' to force it on.`,
		Example: `  nucleus run
  nucleus run --interval 16ms
  nucleus run --for 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, flags, opts)
		},
	}

	addLoopFlags(cmd, &opts)
	return cmd
}

func addLoopFlags(cmd *cobra.Command, opts *loopOptions) {
	cmd.Flags().StringSliceVar(&opts.manifests, "manifest", nil, "Bean manifest file, repeatable (overrides beans.manifests)")
	cmd.Flags().DurationVar(&opts.interval, "interval", DefaultTickInterval, "Tick interval")
	cmd.Flags().DurationVar(&opts.duration, "for", 0, "Stop after this long (0 runs until interrupted)")
}

// runLoop boots a session, optionally watches its manifests and ticks the
// kernel until the context ends. A tick error stops the loop.
func runLoop(cmd *cobra.Command, flags *globalFlags, opts loopOptions) error {
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got: %s", opts.interval)
	}

	s, err := openSession(flags, true, opts.manifests...)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	banner := color.New(color.FgCyan, color.Bold)
	info := color.New(color.FgWhite)
	if flags.noColor {
		banner.DisableColor()
		info.DisableColor()
	}

	banner.Fprintln(out, "nucleus kernel running")
	info.Fprintf(out, "   classes:   %d\n", s.kernel.Table().Len())
	info.Fprintf(out, "   interval:  %s\n", opts.interval)

	if opts.watch || s.cfg.Watch.Enabled {
		if len(s.manifests) == 0 {
			return fmt.Errorf("no bean manifests to watch - set beans.manifests or pass --manifest")
		}
		w, err := watch.WatchManifests(s.kernel, watch.Options{
			Paths:    s.manifests,
			Ignored:  []string{"*.swp", "*.swo"},
			Debounce: s.cfg.Watch.Debounce,
			Logger:   s.logger.Named("watch"),
		})
		if err != nil {
			return fmt.Errorf("failed to watch manifests: %w", err)
		}
		defer w.Stop()
		for _, path := range s.manifests {
			info.Fprintf(out, "   watching:  %s\n", path)
		}
	}
	fmt.Fprintln(out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	err = tick(ctx, s, opts.interval, out, flags.noColor)
	s.logger.Info("kernel stopped", zap.Uint64("ticks", s.kernel.Ticks()))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "stopped after %d ticks\n", s.kernel.Ticks())
	return nil
}

func tick(ctx context.Context, s *session, interval time.Duration, out io.Writer, noColor bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reloading := s.kernel.ReloadPending()
			if err := s.kernel.Update(nil); err != nil {
				return err
			}
			if reloading {
				fmt.Fprintln(out, FormatReload(s.kernel.Ticks(), noColor))
			}
		}
	}
}

// FormatReload renders the line printed after a tick that ran a reload
func FormatReload(ticks uint64, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ reloaded (tick %d)", ticks)
}
