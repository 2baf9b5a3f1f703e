package cli

import (
	"github.com/spf13/cobra"

	"github.com/peermeet/peermeet/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room created by another participant. The room ID is the last
segment of the link the host shared.

Examples:
  peermeet join 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed --email bob@example.com
  peermeet join 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed --video cam.ivf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		roomID := args[0]
		ui.PrintInfo("Joining room " + roomID)
		return runCall(cfg, roomID)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
