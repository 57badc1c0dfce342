// Package modelscmder provides the models command for listing the
// relay's model catalog.
package modelscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rotaworks/rotachat/pkg/cliui"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/registry"
)

type modelsCommander struct {
	relayTarget string
	anonKey     string
}

const modelsLongDesc string = `List the models available through the rotachat relay.

The catalog is served by the relay from its model registry; only active
entries with a usable endpoint are shown, in their configured order.

Examples:
  rotachat models
  rotachat models --relay-target http://localhost:8787`

const modelsShortDesc string = "List available models"

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("relay-target") {
				cmder.relayTarget = cfg.Client.RelayTarget
			}
			if !cmd.Flags().Changed("anon-key") {
				cmder.anonKey = cfg.Relay.AnonKey
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.relayTarget, "relay-target", "r", defaults.Client.RelayTarget, "Rotachat relay URL")
	cmd.Flags().StringVarP(&cmder.anonKey, "anon-key", "k", "", "Project key to present to the relay")

	return cmd
}

func (c *modelsCommander) run() error {
	client := registry.NewClient(c.relayTarget, c.anonKey)
	models, err := client.ListModels(context.Background())
	if err != nil {
		return err
	}

	if len(models) == 0 {
		fmt.Printf("\n  %s No models available\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Println()
	for _, model := range models {
		fmt.Printf("  %s %s\n",
			cliui.NameStyle.Render(model.DisplayName),
			cliui.DimStyle.Render(model.ModelIdentifier),
		)
	}
	fmt.Println()

	return nil
}
