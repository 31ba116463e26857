package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
)

const getLongDesc string = `Get one or more configuration values.

Reads the values for the given keys from the config.toml file stored in the
.sleeves/ directory. Defaults apply to keys the file does not set.

Examples:
  sleeves config get primary.backend
  sleeves config get primary.index_path primary.metadata_path`

const getShortDesc string = "Get configuration values"

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key> [key...]",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(args, configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
		},
	}

	return cmd
}

func runGet(keys []string, configDir string) error {
	for _, key := range keys {
		if !config.IsValidConfigKey(key) {
			return unknownKeyError(key)
		}
	}

	cfger, err := openConfig(configDir)
	if err != nil {
		return err
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render(key), renderValue(value))
	}
	fmt.Println()

	return nil
}
