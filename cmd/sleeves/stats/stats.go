// Package statscmder provides the stats command, which renders corpus
// statistics from a running sleeves API server as markdown.
package statscmder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
)

type statsCommander struct {
	space     string
	plain     bool
	apiTarget string
	timeout   time.Duration
}

const statsLongDesc string = `Show album corpus statistics.

Reports the number of albums, the most common genres, the release year range,
review score summary and the number of covers flagged for content, along with
server health.

Examples:
  sleeves stats
  sleeves stats --plain > stats.md`

const statsShortDesc string = "Show album corpus statistics"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
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
	cmd.Flags().StringVar(&cmder.space, "space", "", "Embedding space to report on")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print raw markdown instead of rendering it")

	return cmd
}

func (c *statsCommander) run(ctx context.Context, w io.Writer) error {
	client, err := apisearch.NewClient(c.apiTarget, c.timeout)
	if err != nil {
		return err
	}

	health, err := client.Health(ctx)
	if health == nil {
		return err
	}

	stats, err := client.Stats(ctx, c.space)
	if err != nil {
		return err
	}

	md := renderStats(health, stats)
	if c.plain {
		_, err = io.WriteString(w, md)
		return err
	}

	out, err := cliui.RenderMarkdown(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func renderStats(health *apisearch.HealthResponse, s *apisearch.StatsResponse) string {
	var b strings.Builder

	b.WriteString("# Album corpus\n\n")
	fmt.Fprintf(&b, "- **Status:** %s\n", health.Status)
	fmt.Fprintf(&b, "- **Albums:** %d\n", s.TotalAlbums)
	fmt.Fprintf(&b, "- **Flagged covers:** %d\n", s.FlaggedCount)
	if s.YearRange.Min != nil && s.YearRange.Max != nil {
		fmt.Fprintf(&b, "- **Years:** %d to %d\n", *s.YearRange.Min, *s.YearRange.Max)
	}
	if s.Scores.Average != nil {
		fmt.Fprintf(&b, "- **Review score:** %.2f average", *s.Scores.Average)
		if s.Scores.Min != nil && s.Scores.Max != nil {
			fmt.Fprintf(&b, " (%.1f to %.1f)", *s.Scores.Min, *s.Scores.Max)
		}
		b.WriteString("\n")
	}

	if len(s.TopGenres) > 0 {
		b.WriteString("\n## Top genres\n\n| Genre | Albums |\n| --- | ---: |\n")
		for _, g := range s.TopGenres {
			fmt.Fprintf(&b, "| %s | %d |\n", g.Genre, g.Count)
		}
	}

	if len(health.Spaces) > 0 {
		b.WriteString("\n## Spaces\n\n| Space | Backend | Dimension | Size |\n| --- | --- | ---: | ---: |\n")
		for _, sp := range health.Spaces {
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", sp.Name, sp.Backend, sp.Dimension, sp.Size)
		}
	}

	var warnings []string
	for _, sp := range health.Spaces {
		if sp.Error != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", sp.Name, sp.Error))
		}
		for _, w := range sp.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", sp.Name, w))
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
