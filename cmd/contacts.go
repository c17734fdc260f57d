package cmd

import (
	"fmt"
	"strings"

	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/ui"
	"github.com/spf13/cobra"
)

var contactsCmd = &cobra.Command{
	Use:     "contacts",
	Aliases: []string{"c"},
	Short:   "List saved contacts",
	Long: `Manage saved contacts. Requests from contacts are accepted without asking.

Examples:
  p2pchat contacts
  p2pchat contacts add k7f2q9xw Alice
  p2pchat contacts rename k7f2q9xw Alice B
  p2pchat contacts remove k7f2q9xw`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			fmt.Println(ui.ContactsView(rt.Contacts.List()))
			return nil
		})
	},
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <id> [name]",
	Short: "Save a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			c, err := rt.Contacts.Add(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return chat.NewPeerError("add contact", args[0], err)
			}
			ui.PrintSuccessf("Saved %s as %s", c.PeerID, c.Name())
			return nil
		})
	},
}

var contactsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Change a contact's display name",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			name := strings.Join(args[1:], " ")
			if err := rt.Contacts.Rename(args[0], name); err != nil {
				return chat.NewPeerError("rename contact", args[0], err)
			}
			ui.PrintSuccessf("Renamed %s to %s", args[0], name)
			return nil
		})
	},
}

var contactsRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Forget a contact",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			if err := rt.Contacts.Remove(args[0]); err != nil {
				return chat.NewPeerError("remove contact", args[0], err)
			}
			ui.PrintSuccessf("Removed %s", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(contactsCmd)
	contactsCmd.AddCommand(contactsAddCmd, contactsRenameCmd, contactsRemoveCmd)
}
