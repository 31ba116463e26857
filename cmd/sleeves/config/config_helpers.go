package configcmder

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
)

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// openConfig resolves the config file and prints where it lives.
func openConfig(configDir string) (*config.Configer, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Printf("\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	return cfger, nil
}

func renderValue(value string) string {
	if value == "" {
		return cliui.DimStyle.Render("<not set>")
	}
	return cliui.ValueStyle.Render(value)
}

// section returns the TOML section of a dotted key.
func section(key string) string {
	s, _, _ := strings.Cut(key, ".")
	return s
}
