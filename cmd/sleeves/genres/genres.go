// Package genrescmder provides the genres command.
package genrescmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
)

type genresCommander struct {
	space     string
	apiTarget string
	timeout   time.Duration
}

const genresLongDesc string = `List the distinct genres of the album corpus.

Genres are listed in lexicographic order, one per line, which makes the output
suitable for piping into "sleeves search --genre".

Examples:
  sleeves genres
  sleeves genres --space text --api-target http://localhost:8000`

const genresShortDesc string = "List distinct album genres"

func NewGenresCmd() *cobra.Command {
	cmder := &genresCommander{}

	cmd := &cobra.Command{
		Use:   "genres",
		Short: genresShortDesc,
		Long:  genresLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{config.FlagAPITarget})

			cfg, err := config.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.apiTarget = cfg.Client.APITarget
			cmder.timeout = cfg.Remote.Timeout
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVar(&cmder.space, "space", "", "Embedding space to list genres for")

	return cmd
}

func (c *genresCommander) run(ctx context.Context, w io.Writer) error {
	client, err := apisearch.NewClient(c.apiTarget, c.timeout)
	if err != nil {
		return err
	}

	resp, err := client.Genres(ctx, c.space)
	if err != nil {
		return err
	}

	if resp.TotalGenres == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No genres found."))
		return nil
	}

	for _, g := range resp.Genres {
		fmt.Fprintln(w, g)
	}
	return nil
}
