// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/api"
	apicmder "github.com/rotaworks/rotachat/cmd/rotachatd/serve/api"
	relaycmder "github.com/rotaworks/rotachat/cmd/rotachatd/serve/relay"
	"github.com/rotaworks/rotachat/cmd/rotachatd/wiring"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/logger"
	"github.com/rotaworks/rotachat/proxy"
)

type ServeCommander struct {
	relayListen string
	apiListen   string
	anonKey     string
	configDir   string
	debug       bool
	cfg         *config.Config
	logger      *zap.Logger
}

const serveLongDesc string = `Run rotachat services.

Use subcommands to run individual services or all services together:
  rotachatd serve          Run both relay and API server together
  rotachatd serve api      Run just the audit API server
  rotachatd serve relay    Run just the streaming relay`

const serveShortDesc string = "Run rotachat services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

			if !cmd.Flags().Changed("relay-listen") {
				cmder.relayListen = cmder.cfg.Relay.Listen
			}
			if !cmd.Flags().Changed("api-listen") {
				cmder.apiListen = cmder.cfg.API.Listen
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
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.relayListen, "relay-listen", "r", defaults.Relay.Listen, "Address for the relay to listen on")
	cmd.Flags().StringVarP(&cmder.apiListen, "api-listen", "a", defaults.API.Listen, "Address for the audit API to listen on")
	cmd.Flags().StringVarP(&cmder.anonKey, "anon-key", "k", "", "Project key clients must present")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(relaycmder.NewRelayCmd())

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := context.Background()

	// Shared storage for both servers
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
		ListenAddr:         c.relayListen,
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
		zap.String("relay_addr", c.relayListen),
	)

	apiConfig := api.Config{
		ListenAddr: c.apiListen,
	}
	apiServer := api.NewServer(apiConfig, driver, c.logger)

	c.logger.Info("starting api server",
		zap.String("api_addr", c.apiListen),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := relay.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
