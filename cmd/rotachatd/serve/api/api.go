// Package apicmder provides the audit API server cobra command.
package apicmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/api"
	"github.com/rotaworks/rotachat/cmd/rotachatd/wiring"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/logger"
)

type apiCommander struct {
	listen string
	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

const apiLongDesc string = `Run the rotachat audit API server for inspecting the model
catalog and the usage log.`

const apiShortDesc string = "Run the rotachat audit API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
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

			if !cmd.Flags().Changed("listen") {
				cmder.listen = cmder.cfg.API.Listen
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
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.API.Listen, "Address for API server to listen on")

	return cmd
}

func (c *apiCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := wiring.NewStorageDriver(context.Background(), c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	apiConfig := api.Config{
		ListenAddr: c.listen,
	}

	server := api.NewServer(apiConfig, driver, c.logger)

	c.logger.Info("starting API server",
		zap.String("listen", c.listen),
	)

	return server.Run()
}
