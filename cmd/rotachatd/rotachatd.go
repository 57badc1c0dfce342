// Package rotachatdcmder
package rotachatdcmder

import (
	"github.com/spf13/cobra"

	secretscmder "github.com/rotaworks/rotachat/cmd/rotachatd/secrets"
	seedcmder "github.com/rotaworks/rotachat/cmd/rotachatd/seed"
	servecmder "github.com/rotaworks/rotachat/cmd/rotachatd/serve"
	versioncmder "github.com/rotaworks/rotachat/cmd/version"
)

const rotachatdLongDesc string = `Rotachatd is the server side of rotachat: a streaming
relay in front of OpenAI-compatible model providers, plus a usage audit API.

Run services using:
  rotachatd serve api      Run the audit API server
  rotachatd serve relay    Run the streaming relay
  rotachatd serve          Run both servers together`

const rotachatdShortDesc string = "Rotachat - streaming chat relay"

func NewRotachatdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotachatd",
		Short: rotachatdShortDesc,
		Long:  rotachatdLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .rotachat/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(secretscmder.NewSecretsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
