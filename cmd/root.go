package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikelwish/p2p-service/internal/config"
	"github.com/nikelwish/p2p-service/internal/ui"
	"github.com/nikelwish/p2p-service/internal/version"
	"github.com/spf13/cobra"
)

// flags collects the persistent overrides shared by every subcommand.
var flags config.Options

// rootCmd starts the interactive chat when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "p2pchat",
	Short: "Peer-to-peer text, file and video chat over WebRTC",
	Long: `p2pchat connects you directly to other peers by their peer ID. Sessions
carry text and small files; calls add audio and video on top. A rendezvous
server brokers each connection; the conversation itself flows peer to peer.

Examples:
  p2pchat
  p2pchat --relay
  p2pchat --config ~/.config/p2pchat/config.yaml --metrics-addr :9090
  p2pchat contacts add k7f2q9xw Alice`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.ConfigFile, "config", "c", "", "YAML config file")
	pf.StringVarP(&flags.Domain, "domain", "d", "", "PeerJS server domain")
	pf.StringVar(&flags.WebSocketURL, "ws-url", "", "Full PeerJS WebSocket URL, overrides --domain")
	pf.StringVar(&flags.Key, "key", "", "PeerJS server API key")
	pf.StringVarP(&flags.STUNServer, "stun", "s", "", "Custom STUN server(s), comma separated")
	pf.StringVarP(&flags.TURNServer, "turn", "t", "", "Custom TURN server")
	pf.StringVarP(&flags.TURNUser, "turn-user", "u", "", "TURN username")
	pf.StringVarP(&flags.TURNPass, "turn-pass", "p", "", "TURN password")
	pf.BoolVarP(&flags.ForceRelay, "relay", "r", false, "Force relay mode")
	pf.StringVar(&flags.DataDir, "data-dir", "", "Directory for the local database and log")
	pf.StringVar(&flags.DownloadDir, "download-dir", "", "Directory received files are saved to")
	pf.DurationVar(&flags.PendingTTL, "pending-ttl", 0, "How long an unanswered connection request is kept")
	pf.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}
