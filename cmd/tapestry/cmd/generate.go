package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pthm/tapestry/lib/generator"
)

func defaultPatterns(args []string) []string {
	if len(args) == 0 {
		return []string{"./..."}
	}
	return args
}

func generateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate service proxies for interfaces marked //tapestry:proxy",
		Example: `  tapestry generate ./...
  tapestry generate --dry-run ./example/...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generator.New(generator.Options{DryRun: dryRun}).Generate(defaultPatterns(args)...)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be generated without writing files")
	return cmd
}

func cleanCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "clean [packages]",
		Short: "Remove generated proxy files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generator.New(generator.Options{DryRun: dryRun}).Clean(defaultPatterns(args)...)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the files without removing them")
	return cmd
}
