// Package rotachatcmder
package rotachatcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/rotaworks/rotachat/cmd/rotachat/auth"
	chatcmder "github.com/rotaworks/rotachat/cmd/rotachat/chat"
	configcmder "github.com/rotaworks/rotachat/cmd/rotachat/config"
	modelscmder "github.com/rotaworks/rotachat/cmd/rotachat/models"
	usagecmder "github.com/rotaworks/rotachat/cmd/rotachat/usage"
	versioncmder "github.com/rotaworks/rotachat/cmd/version"
)

const rotachatLongDesc string = `Rotachat is a streaming chat client for the rotachat relay.

Sign in, pick a model, and chat:
  rotachat signin --token …   Store your access token
  rotachat models             List available models
  rotachat chat               Start an interactive chat session`

const rotachatShortDesc string = "Rotachat - streaming chat client"

func NewRotachatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotachat",
		Short: rotachatShortDesc,
		Long:  rotachatLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .rotachat/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(usagecmder.NewUsageCmd())
	cmd.AddCommand(authcmder.NewSigninCmd())
	cmd.AddCommand(authcmder.NewSignoutCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
