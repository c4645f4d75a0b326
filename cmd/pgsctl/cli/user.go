package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ubuntu/strictpgs/internal/pgs"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
	"golang.org/x/term"
)

func (a *App) installUser() {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Commands related to users",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return cmd.Usage() },
	}

	var category string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the users of the account database",
		Long: `List the users in the order of the passwd file, with their category.
With --category, only the names of the users in that category are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := types.UserCategories
			if category != "" {
				c, err := types.ParseUserCategory(category)
				if err != nil {
					return err
				}
				categories = []types.UserCategory{c}
			}

			return a.view(func(s *pgs.Store) error {
				w := cmd.OutOrStdout()
				for _, c := range categories {
					for _, name := range s.UsersOf(c) {
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
	listCmd.Flags().StringVar(&category, "category", "", "only list users of this category (system, normal, software or deprecated)")

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a normal user",
		Long: `Add a normal user with its per-user group and shadow entry.

The first free ID in the normal range is used for both the user and its group.
The password hash is read from the terminal, or from the first line of the
standard input when it is not a terminal. It is stored as is.

Examples:
  echo '$6$salt$hash' | pgsctl user add john`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.readPassword(cmd)
			if err != nil {
				return err
			}
			return a.update(func(s *pgs.Store) error { return s.AddNormalUser(args[0], password) })
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a normal user",
		Long:  "Remove a normal user, its per-user group, its shadow entry and its group memberships.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(func(s *pgs.Store) error { return s.RemoveNormalUser(args[0]) })
		},
	}

	groupsCmd := &cobra.Command{
		Use:   "groups <name>",
		Short: "List the groups a user is a member of, apart from its own group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(s *pgs.Store) error {
				if _, _, err := s.User(args[0]); err != nil {
					return err
				}
				for _, g := range s.SecondaryGroupsOfUser(args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), g)
				}
				return nil
			})
		},
	}

	userCmd.AddCommand(listCmd, addCmd, removeCmd, groupsCmd)
	a.rootCmd.AddCommand(userCmd)
}

// readPassword reads the password hash without echo on a terminal, or the first line of stdin otherwise.
func (a *App) readPassword(cmd *cobra.Command) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password hash: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("could not read password: %w", err)
		}
		return string(b), nil
	}

	l, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("could not read password: %w", err)
	}
	return strings.TrimSuffix(l, "\n"), nil
}
