// Package secretscmder provides the secrets command for storing provider
// API keys referenced by model configurations.
package secretscmder

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rotaworks/rotachat/pkg/cliui"
	"github.com/rotaworks/rotachat/pkg/secrets"
)

const secretsLongDesc string = `Store provider API keys for the relay.

Each model configuration names a secret reference (for example
OPENAI_API_KEY); the relay resolves that reference against
secrets.toml in the .rotachat/ directory first and the environment
second. The key itself never lives in the model catalog.

Examples:
  rotachatd secrets OPENAI_API_KEY           Prompt for the key
  rotachatd secrets --list                   List stored references
  rotachatd secrets --remove OPENAI_API_KEY  Remove a stored key
  echo $KEY | rotachatd secrets OPENAI_API_KEY`

const secretsShortDesc string = "Store provider API keys for the relay"

func NewSecretsCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "secrets [ref]",
		Short: secretsShortDesc,
		Long:  secretsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			switch {
			case listFlag:
				return runList(configDir)
			case removeFlag != "":
				return runRemove(removeFlag, configDir)
			default:
				if len(args) == 0 {
					return errors.New("secret reference argument required (the secret_ref named in the model configuration)")
				}
				return runSet(args[0], configDir)
			}
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored secret references")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the stored key for a secret reference")

	return cmd
}

func runSet(ref, configDir string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errors.New("secret reference cannot be empty")
	}

	apiKey, err := readAPIKey(ref)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := secrets.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}

	if err := mgr.SetKey(ref, apiKey); err != nil {
		return err
	}

	fmt.Printf("\n  %s Stored key for %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(ref),
	)
	return nil
}

func runList(configDir string) error {
	mgr, err := secrets.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}

	refs, err := mgr.ListRefs()
	if err != nil {
		return err
	}

	if len(refs) == 0 {
		fmt.Printf("\n  %s No stored keys.\n", cliui.DimStyle.Render("●"))
		fmt.Printf("  Use 'rotachatd secrets <ref>' to store one.\n\n")
		return nil
	}

	fmt.Println()
	for _, ref := range refs {
		fmt.Printf("  %s  %s\n", cliui.SuccessMark, cliui.NameStyle.Render(ref))
	}
	fmt.Println()

	return nil
}

func runRemove(ref, configDir string) error {
	mgr, err := secrets.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}

	if err := mgr.RemoveKey(strings.TrimSpace(ref)); err != nil {
		return err
	}

	fmt.Printf("\n  %s Removed key for %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(ref))

	return nil
}

// readAPIKey reads an API key from stdin. If stdin is a pipe, it reads the
// first line. Otherwise, it prompts interactively with hidden input.
func readAPIKey(ref string) (string, error) {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("checking stdin: %w", err)
	}

	// Piped input
	if (fi.Mode() & os.ModeCharDevice) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", errors.New("no input received on stdin")
	}

	// Interactive terminal
	fmt.Printf("Enter key for %s: ", ref)
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}

	return string(key), nil
}
