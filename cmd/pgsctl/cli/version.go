package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ubuntu/strictpgs/internal/consts"
)

func (a *App) installVersion() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Returns version of pgsctl and exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", cmdName, consts.Version)
			return err
		},
	}
	a.rootCmd.AddCommand(cmd)
}
