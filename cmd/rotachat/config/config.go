// Package configcmder provides the config command for managing persistent
// rotachat configuration stored in the .rotachat/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent rotachat configuration.

Configuration is stored as config.toml in the .rotachat/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values, and ROTACHAT_* environment
variables sit between the two.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.dsn, storage.auto_migrate,
  relay.listen, relay.anon_key, relay.log_resolve_failures,
  relay.workers, relay.queue_size,
  api.listen,
  auth.provider, auth.target,
  events.provider, events.brokers, events.topic,
  client.relay_target, client.api_target, client.model,
  client.history_path, client.window

Use subcommands to get, set, or list configuration values:
  rotachat config set <key> <value>    Set a configuration value
  rotachat config get <key>            Get a configuration value
  rotachat config list                 List all configuration values

Examples:
  rotachat config set client.model gpt-4o-mini
  rotachat config set relay.listen :9090
  rotachat config get client.relay_target
  rotachat config list`

const configShortDesc string = "Manage persistent rotachat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
