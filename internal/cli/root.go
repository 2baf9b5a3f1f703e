package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/peermeet/peermeet/internal/ui"
)

var (
	flagServer   string
	flagInsecure bool
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagEmail    string
	flagVideo    string
	flagAudio    string
	flagScreen   string
	flagRecDir   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "peermeet",
	Short: "Pairwise video calls over WebRTC from the terminal",
	Long: `Peermeet establishes a direct peer-to-peer media session between two
participants through a lightweight signaling server. Host a room, share
the link, and the media path flows peer to peer; the server only relays
the handshake.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", "", "signaling server host (host:port)")
	pf.BoolVar(&flagInsecure, "insecure", false, "use ws/http instead of wss/https")
	pf.StringVar(&flagSTUN, "stun", "", "STUN server URL")
	pf.StringVar(&flagTURN, "turn", "", "TURN server URL")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.StringVar(&flagEmail, "email", "", "identity shown to the remote participant")
	pf.StringVar(&flagVideo, "video", "", "IVF file standing in for the camera")
	pf.StringVar(&flagAudio, "audio", "", "Ogg file standing in for the microphone")
	pf.StringVar(&flagScreen, "screen", "", "IVF file standing in for screen capture")
	pf.StringVar(&flagRecDir, "record-dir", ".", "directory for recording output")
}
