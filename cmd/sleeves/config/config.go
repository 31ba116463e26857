// Package configcmder provides the config command for managing persistent
// sleeves configuration stored in the .sleeves/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent sleeves configuration.

Configuration is stored as config.toml in the .sleeves/ directory and provides
default values for command flags. CLI flags and SLEEVES_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen, client.api_target,
  search.max_k, search.default_k, search.expansion_factor, ...
  remote.timeout, remote.retry_backoff,
  s3.region, s3.endpoint, s3.path_style,
  events.provider, events.brokers, events.topic,
  primary.backend, primary.index_path, primary.embedding_target, ...
  secondary.enabled, secondary.backend, secondary.index_path, ...

Use subcommands to get, set, or list configuration values:
  sleeves config set <key> <value>    Set a configuration value
  sleeves config get <key>            Get a configuration value
  sleeves config list                 List all configuration values

Examples:
  sleeves config set primary.backend postgres
  sleeves config set secondary.enabled true
  sleeves config get primary.index_path
  sleeves config list`

const configShortDesc string = "Manage persistent sleeves configuration"

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
