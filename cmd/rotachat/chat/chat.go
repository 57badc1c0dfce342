// Package chatcmder provides the chat command for interactive streaming
// chat through the rotachat relay.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rotaworks/rotachat/pkg/chat"
	"github.com/rotaworks/rotachat/pkg/cliui"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/dotdir"
	"github.com/rotaworks/rotachat/pkg/history"
	"github.com/rotaworks/rotachat/pkg/llm"
	"github.com/rotaworks/rotachat/pkg/logger"
	"github.com/rotaworks/rotachat/pkg/registry"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	relayTarget string
	apiTarget   string
	anonKey     string
	model       string
	window      uint
	historyPath string
	plain       bool
	debug       bool

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session through the rotachat relay.

Responses stream in as they are generated. The conversation is cached
locally per model, so switching models swaps the whole history and
coming back restores it.

In-session commands:
  /stop          Stop the current response (also Ctrl+C)
  /retry         Re-send the last message after a failure or stop
  /regenerate    Regenerate the last completed response
  /clear         Clear this model's conversation
  /exit          Quit (also Ctrl+D)

Examples:
  rotachat chat
  rotachat chat --model gpt-4o-mini
  rotachat chat --relay-target http://localhost:8787`

const chatShortDesc string = "Interactive streaming chat through the rotachat relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
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
			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			if !cmd.Flags().Changed("anon-key") {
				cmder.anonKey = cfg.Relay.AnonKey
			}
			if !cmd.Flags().Changed("model") {
				cmder.model = cfg.Client.Model
			}
			if !cmd.Flags().Changed("window") {
				cmder.window = cfg.Client.Window
			}
			if !cmd.Flags().Changed("history-path") {
				cmder.historyPath = cfg.Client.HistoryPath
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			configDir, _ := cmd.Flags().GetString("config-dir")

			return cmder.run(configDir)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.relayTarget, "relay-target", "r", defaults.Client.RelayTarget, "Rotachat relay URL")
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Rotachat audit API URL")
	cmd.Flags().StringVarP(&cmder.anonKey, "anon-key", "k", "", "Project key to present to the relay")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model identifier (defaults to the last selected model)")
	cmd.Flags().UintVarP(&cmder.window, "window", "w", defaults.Client.Window, "User turns sent per request")
	cmd.Flags().StringVar(&cmder.historyPath, "history-path", "", "Local conversation database path")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Skip markdown rendering of completed responses")

	return cmd
}

func (c *chatCommander) run(configDir string) error {
	ctx := context.Background()

	// Session state carries the access token and the last selected model.
	ddm := dotdir.NewManager()

	logfile, err := c.setupLogger(ddm, configDir)
	if err != nil {
		return err
	}
	if logfile != nil {
		defer logfile.Close()
	}

	session, err := ddm.LoadSessionState(configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	accessToken := ""
	if session != nil {
		accessToken = session.AccessToken
		if c.model == "" {
			c.model = session.Model
		}
	}

	model, err := c.resolveModel(ctx)
	if err != nil {
		return err
	}

	store, err := c.openHistory(ctx, ddm, configDir)
	if err != nil {
		return err
	}
	defer store.Close()

	cache := chat.NewCache(store)
	if err := cache.SwitchModel(ctx, model.ModelIdentifier); err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}

	printed := 0
	controller := chat.NewController(chat.Config{
		Target:      c.relayTarget,
		AnonKey:     c.anonKey,
		AccessToken: accessToken,
		Window:      int(c.window),
		Logger:      c.logger,
		Hooks: chat.Hooks{
			OnDelta: func(m chat.Message) {
				fmt.Print(m.Content[printed:])
				printed = len(m.Content)
			},
		},
	}, cache)

	// Remember the model for next time.
	if session == nil {
		session = &dotdir.SessionState{}
	}
	session.Model = model.ModelIdentifier
	if err := ddm.SaveSession(session, configDir); err != nil {
		c.logger.Warn("saving session failed", "error", err)
	}

	c.printBanner(model, cache)

	// Ctrl+C stops the in-flight response instead of killing the session.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			controller.Cancel()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		switch input {
		case "/stop":
			controller.Cancel()
			continue

		case "/retry":
			if err := controller.Retry(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
				continue
			}
			c.streamResponse(controller, &printed)
			continue

		case "/regenerate":
			if err := controller.Regenerate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
				continue
			}
			c.streamResponse(controller, &printed)
			continue

		case "/clear":
			if err := cache.Clear(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
				continue
			}
			fmt.Printf("  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue
		}

		if _, err := controller.Send(ctx, input, nil); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}
		c.streamResponse(controller, &printed)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// setupLogger builds the session logger: pretty output on stderr so it
// never interleaves with the streamed response on stdout, plus a JSON
// log file in the dot-dir when --debug is set. The returned file is nil
// unless debug logging is on.
func (c *chatCommander) setupLogger(ddm *dotdir.Manager, configDir string) (*os.File, error) {
	pretty := logger.New(
		logger.WithPretty(true),
		logger.WithDebug(c.debug),
		logger.WithWriter(os.Stderr),
	)

	if !c.debug {
		c.logger = pretty
		return nil, nil
	}

	dir, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving log path: %w", err)
	}
	logfile, err := os.OpenFile(filepath.Join(dir, "chat.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(pretty, logger.New(
		logger.WithJSON(true),
		logger.WithDebug(true),
		logger.WithWriter(logfile),
	))
	return logfile, nil
}

// streamResponse waits for the in-flight generation while the OnDelta
// hook prints tokens, then reports the outcome.
func (c *chatCommander) streamResponse(controller *chat.Controller, printed *int) {
	*printed = 0
	fmt.Print(assistantPrompt)

	final, ok := controller.Wait()
	if !ok {
		fmt.Println()
		return
	}

	fmt.Println()
	switch final.State {
	case chat.StateFailed:
		fmt.Fprintf(os.Stderr, "\n  %s %s %s\n\n",
			cliui.FailMark,
			final.FailReason,
			cliui.DimStyle.Render("(/retry to try again)"),
		)

	case chat.StateStopped:
		fmt.Printf("\n  %s %s\n\n",
			cliui.DimStyle.Render("stopped"),
			cliui.DimStyle.Render("(/retry to re-send)"),
		)

	default:
		if !c.plain {
			if rendered, err := cliui.RenderMarkdown(final.Content); err == nil {
				// Replace the raw stream with the rendered version.
				fmt.Print("\n" + rendered)
			}
		}
		fmt.Println()
	}
}

// resolveModel fetches the catalog and picks the configured model, or the
// first one when nothing is configured.
func (c *chatCommander) resolveModel(ctx context.Context) (llm.ModelOption, error) {
	client := registry.NewClient(c.relayTarget, c.anonKey)
	models, err := client.ListModels(ctx)
	if err != nil {
		return llm.ModelOption{}, err
	}
	if len(models) == 0 {
		return llm.ModelOption{}, fmt.Errorf("no models available; seed the catalog with rotachatd seed")
	}

	if c.model == "" {
		return models[0], nil
	}

	model, ok := registry.Resolve(models, c.model)
	if !ok {
		return llm.ModelOption{}, fmt.Errorf("model %q not in the catalog; run rotachat models", c.model)
	}
	return model, nil
}

func (c *chatCommander) openHistory(ctx context.Context, ddm *dotdir.Manager, configDir string) (*history.Store, error) {
	path := c.historyPath
	if path == "" {
		dir, err := ddm.Target(configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving history path: %w", err)
		}
		path = filepath.Join(dir, "history.db")
	}

	store, err := history.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return store, nil
}

func (c *chatCommander) printBanner(model llm.ModelOption, cache *chat.Cache) {
	fmt.Println()
	if n := len(cache.Messages()); n > 0 {
		fmt.Printf("  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", n)),
		)
	} else {
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(model.DisplayName),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
}
