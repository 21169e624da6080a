package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/distpack/internal/service/packager"
	"github.com/oshokin/distpack/internal/version"
)

// NewRootCommand builds the distpack command tree.
func NewRootCommand() *cobra.Command {
	options := new(packager.Options)

	rootCmd := &cobra.Command{
		Use:   "distpack [release-id]",
		Short: "Assemble a release distribution archive",
		Long: `Copies the files, library directory, shell scripts, sample output and source
trees listed in the configuration into a staging directory named after the
release, compresses it into <release-id>.tar.gz and removes the staging directory.

Without --config, distpack.yaml in the working directory is used when present,
otherwise the built-in BioC_Java_1.0 layout.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if len(args) > 0 {
				options.Release = args[0]
			}

			return packager.Run(ctx, options)
		},
	}

	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "", "path to configuration file (YAML or .toml)")
	flags.StringVarP(&options.SourceRoot, "source", "s", "", "directory the manifest paths are relative to")
	flags.StringVarP(&options.DestRoot, "dest", "d", "", "directory receiving the staging directory and archive")
	flags.StringVarP(&options.Format, "format", "f", "", "archive format: tar.gz or cpio.gz")
	flags.StringVar(&options.StagingPolicy, "staging", "", "leftover staging directory policy: fail, clean or reuse")
	flags.BoolVar(&options.Checksum, "checksum", false, "write a SHA-512 checksum file next to the archive")
	flags.BoolVar(&options.CleanupOnFailure, "cleanup-on-failure", false,
		"remove the staging directory even when a step fails")
	flags.StringVarP(&options.LogLevel, "log-level", "l", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newInitCommand(), newInspectCommand())
	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Execute runs the distpack CLI and exits with non-zero status on error.
func Execute() {
	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
