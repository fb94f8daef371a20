package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func servicesCmd(configFile *string) *cobra.Command {
	var (
		startup bool
		idsOnly bool
	)
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the services defined by the application modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg, zap.NewNop(), false)
			if err != nil {
				return err
			}
			defer reg.Shutdown()

			out := cmd.OutOrStdout()
			if idsOnly {
				for _, id := range reg.ServiceIDs() {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			if startup {
				if err := reg.PerformRegistryStartup(); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tINTERFACE\tSCOPE\tSTATUS\tMARKERS")
			for _, a := range reg.ServiceActivity() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.ServiceID, a.Interface, a.Scope, a.Status, strings.Join(a.Markers, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&startup, "startup", false, "Run registry startup before listing")
	cmd.Flags().BoolVar(&idsOnly, "ids", false, "Print service ids only")
	return cmd
}
