package cmd

import (
	"fmt"

	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/ui"
	"github.com/spf13/cobra"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Show your peer ID",
	Long: `Show the peer ID others use to reach you. The ID is created on first use
and kept in the local database.

Examples:
  p2pchat id
  p2pchat id set my-desk
  p2pchat id reset`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			id, err := rt.Identity.Load()
			if err != nil {
				return chat.NewError("load id", err)
			}
			fmt.Println(ui.IdentityView(id))
			return nil
		})
	},
}

var idSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Choose your peer ID",
	Long:  "Choose your peer ID. It is claimed on the server the next time p2pchat starts.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			if err := rt.Identity.Set(args[0]); err != nil {
				return chat.NewError("set id", err)
			}
			ui.PrintSuccessf("Peer ID set to %s", args[0])
			return nil
		})
	},
}

var idResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace your peer ID with a new random one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *Runtime) error {
			id, err := rt.Identity.Regenerate()
			if err != nil {
				return chat.NewError("reset id", err)
			}
			ui.PrintSuccessf("New peer ID: %s", id)
			return nil
		})
	},
}

// withRuntime runs fn against the local database without going online.
func withRuntime(fn func(rt *Runtime) error) error {
	rt, err := OpenRuntime(flags, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func init() {
	rootCmd.AddCommand(idCmd)
	idCmd.AddCommand(idSetCmd, idResetCmd)
}
