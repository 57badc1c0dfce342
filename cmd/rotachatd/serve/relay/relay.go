// Package relaycmder provides the relay server command.
package relaycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/cmd/rotachatd/wiring"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/logger"
	"github.com/rotaworks/rotachat/proxy"
)

type relayCommander struct {
	listen    string
	anonKey   string
	configDir string
	debug     bool
	cfg       *config.Config
	logger    *zap.Logger
}

const relayLongDesc string = `Run the streaming relay.

The relay authenticates callers, resolves the requested model against the
stored catalog, forwards the conversation to the provider, and streams the
provider's response back verbatim. Every request that reaches streaming is
recorded in the usage log.`

const relayShortDesc string = "Run the rotachat streaming relay"

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.cfg, err = cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("listen") {
				cmder.listen = cmder.cfg.Relay.Listen
			}
			if !cmd.Flags().Changed("anon-key") {
				cmder.anonKey = cmder.cfg.Relay.AnonKey
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.Relay.Listen, "Address for the relay to listen on")
	cmd.Flags().StringVarP(&cmder.anonKey, "anon-key", "k", "", "Project key clients must present")

	return cmd
}

func (c *relayCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := context.Background()

	driver, err := wiring.NewStorageDriver(ctx, c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	verifier, err := wiring.NewVerifier(c.cfg.Auth, c.anonKey)
	if err != nil {
		return err
	}

	publisher, err := wiring.NewPublisher(c.cfg.Events, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	secretLookup, err := wiring.NewSecretLookup(c.configDir)
	if err != nil {
		return err
	}

	relayConfig := proxy.Config{
		ListenAddr:         c.listen,
		AnonKey:            c.anonKey,
		LogResolveFailures: c.cfg.Relay.LogResolveFailures,
		Publisher:          publisher,
		SecretLookup:       secretLookup,
		NumWorkers:         c.cfg.Relay.Workers,
		QueueSize:          c.cfg.Relay.QueueSize,
	}

	relay, err := proxy.New(relayConfig, driver, verifier, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer relay.Close()

	c.logger.Info("starting relay",
		zap.String("listen", c.listen),
	)

	return relay.Run()
}
