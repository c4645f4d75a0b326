package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ubuntu/strictpgs/internal/pgs"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
)

func (a *App) installGroup() {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Commands related to groups",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return cmd.Usage() },
	}

	var category string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the groups of the account database",
		Long: `List the groups in the order of the group file, with their category.
With --category, only the names of the groups in that category are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := types.GroupCategories
			if category != "" {
				c, err := types.ParseGroupCategory(category)
				if err != nil {
					return err
				}
				categories = []types.GroupCategory{c}
			}

			return a.view(func(s *pgs.Store) error {
				w := cmd.OutOrStdout()
				for _, c := range categories {
					for _, name := range s.GroupsOf(c) {
						if category != "" {
							fmt.Fprintln(w, name)
							continue
						}
						fmt.Fprintf(w, "%s\t%s\n", name, c)
					}
				}
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&category, "category", "", "only list groups of this category (system, per-user, stand-alone, device, software or deprecated)")

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a stand-alone group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(func(s *pgs.Store) error { return s.AddStandAloneGroup(args[0]) })
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a stand-alone group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(func(s *pgs.Store) error { return s.RemoveStandAloneGroup(args[0]) })
		},
	}

	addMemberCmd := &cobra.Command{
		Use:   "add-member <group> <user>",
		Short: "Add a normal user to a system, stand-alone or device group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(func(s *pgs.Store) error { return s.AddUserToGroup(args[1], args[0]) })
		},
	}

	removeMemberCmd := &cobra.Command{
		Use:   "remove-member <group> <user>",
		Short: "Remove a user from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(func(s *pgs.Store) error { return s.RemoveUserFromGroup(args[1], args[0]) })
		},
	}

	groupCmd.AddCommand(listCmd, addCmd, removeCmd, addMemberCmd, removeMemberCmd)
	a.rootCmd.AddCommand(groupCmd)
}
