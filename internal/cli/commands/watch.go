package commands

import (
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(flags *globalFlags) *cobra.Command {
	opts := loopOptions{watch: true}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the tick loop with bean manifest hot reload",
		Long: `Run the tick loop and reload every class whenever a bean manifest
changes.

Changes are debounced (watch.debounce, 100ms by default). The reload runs at
the start of the next tick: every class is extracted again, manifests are
reread and code info is replaced in place. Instances already scheduled keep
their phase handlers.`,
		Example: `  nucleus watch --manifest internal/sandbox/beans.yaml
  nucleus watch --config nucleus.yaml --interval 16ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, flags, opts)
		},
	}

	addLoopFlags(cmd, &opts)
	return cmd
}
