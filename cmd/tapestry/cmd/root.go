// Package cmd implements the tapestry command line.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/tapestry"
	"github.com/pthm/tapestry/example/tasks"
	"github.com/pthm/tapestry/lib/config"
	"github.com/pthm/tapestry/lib/ioc"
)

// Version is set at build time.
var Version = "0.1.0"

// GetRootCmd returns the root of the cobra command-tree.
func GetRootCmd(args []string) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "tapestry",
		Short:        "Tapestry assembles services and serves form-driven pages.",
		SilenceUsage: true,
	}
	rootCmd.SetArgs(args)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Settings file (HCL or YAML) to use")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(servicesCmd(&configFile))
	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// loadConfig reads and checks the settings file.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newRegistry builds the registry of the demo application.
func newRegistry(cfg config.Config, logger *zap.Logger, seed bool) (*ioc.Registry, error) {
	return ioc.NewRegistryBuilder(ioc.WithLogger(logger)).
		Add(tapestry.Module(cfg), tasks.Module(seed)).
		Build()
}
