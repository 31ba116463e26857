package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key grouped by section, with the value from the
config.toml file in the .sleeves/ directory or its default.

Examples:
  sleeves config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(configDir)
		},
	}

	return cmd
}

func runList(configDir string) error {
	cfger, err := openConfig(configDir)
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	current := ""
	for _, key := range keys {
		if s := section(key); s != current {
			if current != "" {
				fmt.Println()
			}
			fmt.Printf("  %s\n", cliui.StepStyle.Render("["+s+"]"))
			current = s
		}

		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), renderValue(value))
	}
	fmt.Println()

	return nil
}
