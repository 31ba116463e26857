// Package initcmder provides the init command for initializing a local
// .sleeves directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
	"github.com/papercomputeco/sleeves/pkg/dotdir"
)

const remotePresetTimeout = 15 * time.Second

const initLongDesc string = `Initialize a new .sleeves/ directory in the current working directory.

Creates a local .sleeves/ directory, with an index/ directory for built
artifacts, that takes precedence over ~/.sleeves/ for configuration and
indexes. A config.toml with defaults is written unless one already exists.

Use --preset to start from a deployment preset or a remote config.toml:
  local       Flat index artifacts under .sleeves/index (default)
  postgres    pgvector similarity functions in PostgreSQL
  chroma      Chroma collections over HTTP

A preset always overwrites an existing config.toml.

Examples:
  sleeves init
  sleeves init --preset postgres
  sleeves init --preset https://example.com/sleeves/config.toml`

const initShortDesc string = "Initialize a local .sleeves/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Preset name ("+strings.Join(config.ValidPresetNames(), ", ")+") or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dir, err := dotdir.NewManager().Init("")
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.toml")
	_, statErr := os.Stat(configPath)
	exists := statErr == nil

	if exists && c.preset == "" {
		fmt.Printf("  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
		return nil
	}
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", statErr)
	}

	cfg, err := c.resolvePreset(ctx)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("  %s Initialized %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(dir))
	if c.preset != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Preset:"), cliui.ValueStyle.Render(c.preset))
	}
	return nil
}

func (c *initCommander) resolvePreset(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchRemoteConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remotePresetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
