package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ubuntu/strictpgs/internal/pgs"
	"github.com/ubuntu/strictpgs/log"
	"gopkg.in/yaml.v3"
)

func (a *App) installVerify() {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the account database follows the categorized layout",
		Long: `Check every invariant of the account database, including the ordering
ones which fixate can repair. Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(s *pgs.Store) error {
				if err := s.Verify(); err != nil {
					return err
				}
				log.Noticef(context.Background(), "Account database in %q is valid", a.config.Prefix)
				return nil
			})
		},
	}
	a.rootCmd.AddCommand(cmd)
}

func (a *App) installFixate() {
	cmd := &cobra.Command{
		Use:   "fixate",
		Short: "Rewrite the account database in its canonical order",
		Long: `Sort the entries of every category, rebuild the shadow file order and rewrite
the database files with their section headers. A database in the legacy layout
is migrated to the categorized one.

The previous content of each file is kept with a "-" suffix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(func(*pgs.Store) error { return nil })
		},
	}
	a.rootCmd.AddCommand(cmd)
}

func (a *App) installDump() {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the categories and secondary groups of the account database as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(s *pgs.Store) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(s.Snapshot()); err != nil {
					return fmt.Errorf("could not serialize account database: %w", err)
				}
				return enc.Close()
			})
		},
	}
	a.rootCmd.AddCommand(cmd)
}
