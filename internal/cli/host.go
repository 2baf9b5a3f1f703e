package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/peermeet/peermeet/internal/config"
	"github.com/peermeet/peermeet/internal/ui"
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Create a room and wait for a participant",
	Long: `Request a fresh room from the signaling server, print the shareable
link, and wait in the room for the other participant.

Examples:
  peermeet host --email alice@example.com --video cam.ivf --audio mic.ogg
  peermeet host --server meet.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		roomID, err := requestRoom(cfg)
		if err != nil {
			return err
		}
		ui.RenderRoomInfo(roomID, cfg.RoomLink(roomID))

		return runCall(cfg, roomID)
	},
}

// requestRoom asks the server for a fresh room token.
func requestRoom(cfg *config.Config) (string, error) {
	resp, err := http.Get(cfg.JoinURL)
	if err != nil {
		return "", fmt.Errorf("request room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request room: server returned %s", resp.Status)
	}

	var body struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("request room: %w", err)
	}
	return body.Link, nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		Domain:     flagServer,
		Insecure:   flagInsecure,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
}

func init() {
	rootCmd.AddCommand(hostCmd)
}
