// Package seedcmder provides the seed command for adding model catalog rows.
package seedcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rotaworks/rotachat/cmd/rotachatd/wiring"
	"github.com/rotaworks/rotachat/pkg/cliui"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/logger"
	"github.com/rotaworks/rotachat/pkg/storage"
)

const seedLongDesc string = `Add a model to the catalog the relay serves.

The secret-ref names an environment variable on the relay host; the
provider key itself never enters the database.

Examples:
  rotachatd seed --id gpt-4o-mini --display-name "GPT-4o mini" \
    --base-url https://api.openai.com/v1 --secret-ref OPENAI_API_KEY
  rotachatd seed --id llama3 --display-name "Llama 3" \
    --base-url http://localhost:11434/v1 --secret-ref OLLAMA_KEY --ordering 2`

const seedShortDesc string = "Add a model to the catalog"

type seedCommander struct {
	id           string
	displayName  string
	identifier   string
	baseURL      string
	systemPrompt string
	secretRef    string
	ordering     int
	inactive     bool
	cfg          *config.Config
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg, err = cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.id, "id", "", "Catalog row id (defaults to the model identifier)")
	cmd.Flags().StringVarP(&cmder.displayName, "display-name", "n", "", "Human-readable name shown in pickers")
	cmd.Flags().StringVarP(&cmder.identifier, "model", "m", "", "Model identifier sent to the provider")
	cmd.Flags().StringVarP(&cmder.baseURL, "base-url", "u", "", "Provider base URL")
	cmd.Flags().StringVar(&cmder.systemPrompt, "system-prompt", "", "System prompt prepended server-side")
	cmd.Flags().StringVar(&cmder.secretRef, "secret-ref", "", "Environment variable holding the provider key")
	cmd.Flags().IntVar(&cmder.ordering, "ordering", 0, "Sort position in the model picker")
	cmd.Flags().BoolVar(&cmder.inactive, "inactive", false, "Insert the row as inactive")

	_ = cmd.MarkFlagRequired("display-name")
	_ = cmd.MarkFlagRequired("base-url")
	_ = cmd.MarkFlagRequired("secret-ref")

	return cmd
}

func (c *seedCommander) run(ctx context.Context) error {
	if c.identifier == "" && c.id == "" {
		return fmt.Errorf("one of --model or --id is required")
	}
	if c.identifier == "" {
		c.identifier = c.id
	}
	if c.id == "" {
		c.id = c.identifier
	}

	log := logger.NewLogger(false)
	defer func() { _ = log.Sync() }()

	driver, err := wiring.NewStorageDriver(ctx, c.cfg.Storage, log)
	if err != nil {
		return err
	}
	defer driver.Close()

	model := storage.ModelConfig{
		ID:              c.id,
		DisplayName:     c.displayName,
		ModelIdentifier: c.identifier,
		BaseURL:         c.baseURL,
		SystemPrompt:    c.systemPrompt,
		SecretRef:       c.secretRef,
		IsActive:        !c.inactive,
		Ordering:        c.ordering,
	}

	if err := cliui.Step(os.Stdout, "Adding model to catalog", func() error {
		return driver.InsertModelConfig(ctx, model)
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Added %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.displayName),
		cliui.DimStyle.Render(fmt.Sprintf("(%s)", c.identifier)),
	)
	return nil
}
