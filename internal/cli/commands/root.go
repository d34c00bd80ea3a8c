// Package commands implements the nucleus command line: introspection of
// loaded classes, handlers and bean manifests, and a tick loop with manifest
// hot reload.
package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/internal/sandbox"
	"github.com/conduit-lang/nucleus/internal/config"
	"github.com/conduit-lang/nucleus/internal/logging"
	"github.com/conduit-lang/nucleus/runtime/kernel"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalFlags are the persistent flags every subcommand reads
type globalFlags struct {
	configPath string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "nucleus",
		Short: "Metadata-driven object runtime tooling",
		Long: color.CyanString(`nucleus - metadata-driven object runtime

Classes declare their category, event and message bindings and beans through
annotations. The runtime extracts that metadata once, routes lifecycle phases
to category handlers and wires instances from bean manifests.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default ./nucleus.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewIntrospectCommand(flags))
	rootCmd.AddCommand(NewRunCommand(flags))
	rootCmd.AddCommand(NewWatchCommand(flags))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)
			for _, row := range [][2]string{
				{"nucleus version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				title.Fprint(out, row[0])
				fmt.Fprintln(out, row[1])
			}
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// session is a kernel booted from the configuration
type session struct {
	cfg       *config.Config
	logger    *zap.Logger
	kernel    *kernel.Kernel
	manifests []string
}

// openSession loads the configuration and boots the sandbox classes. Bean
// manifests come from manifests when given, else from the configuration;
// with withBeans false no manifest is applied.
func openSession(flags *globalFlags, withBeans bool, manifests ...string) (*session, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		manifests = cfg.Beans.Manifests
	}

	opts := kernel.Options{Logger: logger, StrictBindings: cfg.Runtime.StrictBindings}
	var k *kernel.Kernel
	if withBeans {
		k, err = sandbox.Boot(opts, manifests...)
	} else {
		k, err = sandbox.BootClasses(opts)
		manifests = nil
	}
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to boot kernel: %w", err)
	}
	return &session{cfg: cfg, logger: logger, kernel: k, manifests: manifests}, nil
}

func (s *session) Close() {
	_ = s.logger.Sync()
}
