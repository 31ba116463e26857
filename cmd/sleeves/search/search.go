// Package searchcmder provides the search command for finding similar album
// covers through a running sleeves API server.
package searchcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/config"
	"github.com/papercomputeco/sleeves/pkg/logger"
	engine "github.com/papercomputeco/sleeves/pkg/search"
	"github.com/papercomputeco/sleeves/pkg/utils"
)

var (
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	flagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const maxTitleLen = 60

type searchCommander struct {
	query string
	image string
	space string
	limit uint
	quiet bool

	genre          string
	yearMin        int
	yearMax        int
	minSimilarity  float32
	excludeFlagged bool

	apiTarget string
	timeout   time.Duration

	debug  bool
	logger *zap.Logger
}

var clientFlagKeys = []string{
	config.FlagAPITarget,
	config.FlagLimit,
}

const searchLongDesc string = `Search the album corpus via the sleeves API.

Describe a cover in words, or pass --image to find covers that look like a
local image file. Results are ranked by cosine similarity, highest first,
and can be narrowed by genre, release year, similarity and content flag.
Requires a running sleeves API server (see "sleeves serve").

Use --quiet to output only album IDs, one per line.

Examples:
  sleeves search "neon city skyline at night"
  sleeves search --image ./cover.jpg --limit 10
  sleeves search "desert highway" --genre Rock --year-min 1970 --year-max 1979
  sleeves search "a cat" --min-similarity 0.25 --exclude-flagged --quiet`

const searchShortDesc string = "Search album covers by text or image"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (cmder.image == "") {
				return fmt.Errorf("provide either a text query or --image")
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ClientFlags, clientFlagKeys)

			cfg, err := config.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.apiTarget = cfg.Client.APITarget
			cmder.limit = cfg.Search.DefaultK
			cmder.timeout = cfg.Remote.Timeout
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.query = args[0]
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmder.filterParams(cmd))
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.ClientFlags, config.FlagLimit, &cmder.limit)
	cmd.Flags().StringVar(&cmder.image, "image", "", "Search by the cover image at this path")
	cmd.Flags().StringVar(&cmder.space, "space", "", "Embedding space to search (defaults to the server's primary space)")
	cmd.Flags().StringVarP(&cmder.genre, "genre", "g", "", "Only return albums of this genre")
	cmd.Flags().IntVar(&cmder.yearMin, "year-min", 0, "Earliest release year, inclusive")
	cmd.Flags().IntVar(&cmder.yearMax, "year-max", 0, "Latest release year, inclusive")
	cmd.Flags().Float32Var(&cmder.minSimilarity, "min-similarity", 0, "Only return results with similarity above this value")
	cmd.Flags().BoolVar(&cmder.excludeFlagged, "exclude-flagged", false, "Leave out covers flagged for content")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only album IDs, one per line")

	return cmd
}

// filterParams maps the filter flags onto request params. Numeric bounds are
// only sent when their flag was given.
func (c *searchCommander) filterParams(cmd *cobra.Command) apisearch.FilterParams {
	p := apisearch.FilterParams{
		Genre:          c.genre,
		ExcludeFlagged: c.excludeFlagged,
	}
	if cmd.Flags().Changed("year-min") {
		p.YearMin = &c.yearMin
	}
	if cmd.Flags().Changed("year-max") {
		p.YearMax = &c.yearMax
	}
	if cmd.Flags().Changed("min-similarity") {
		p.MinSimilarity = &c.minSimilarity
	}
	return p
}

func (c *searchCommander) run(ctx context.Context, w io.Writer, filter apisearch.FilterParams) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	client, err := apisearch.NewClient(c.apiTarget, c.timeout)
	if err != nil {
		return err
	}

	var resp *apisearch.Response
	if c.image != "" {
		resp, err = c.searchImage(ctx, client, filter)
	} else {
		c.logger.Debug("searching by text", zap.String("query", c.query), zap.Uint("limit", c.limit))
		resp, err = client.SearchText(ctx, c.space, c.query, int(c.limit), filter)
	}
	if err != nil {
		return err
	}

	if resp.TotalResults == 0 {
		if !c.quiet {
			fmt.Fprintln(w, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, r := range resp.Results {
			fmt.Fprintln(w, r.ID)
		}
		return nil
	}

	subject := fmt.Sprintf("%q", c.query)
	if c.image != "" {
		subject = filepath.Base(c.image)
	}
	fmt.Fprintf(w, "\n%s %s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(subject),
		dimStyle.Render(fmt.Sprintf("(%s space)", resp.Space)),
	)

	for _, r := range resp.Results {
		printResult(w, r)
	}
	return nil
}

func (c *searchCommander) searchImage(ctx context.Context, client *apisearch.Client, filter apisearch.FilterParams) (*apisearch.Response, error) {
	data, err := os.ReadFile(c.image)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%s does not look like an image (%s)", c.image, contentType)
	}

	c.logger.Debug("searching by image",
		zap.String("path", c.image),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
	)
	return client.SearchImage(ctx, c.space, filepath.Base(c.image), contentType, data, int(c.limit), filter)
}

func printResult(w io.Writer, r engine.Result) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", r.Rank)),
		scoreStyle.Render(fmt.Sprintf("similarity: %.4f", r.Similarity)),
		idStyle.Render(r.ID),
	)

	title := displayTitle(r)
	fmt.Fprintf(w, "  %s\n", titleStyle.Render(utils.Truncate(title, maxTitleLen)))

	var details []string
	if r.Genre != "" {
		details = append(details, r.Genre)
	}
	if r.ReleaseYear != nil {
		details = append(details, fmt.Sprintf("%d", *r.ReleaseYear))
	}
	if r.Score != nil {
		details = append(details, fmt.Sprintf("score %.1f", *r.Score))
	}
	line := dimStyle.Render(strings.Join(details, " · "))
	if r.Flagged {
		line += " " + flagStyle.Render("[flagged]")
	}
	fmt.Fprintf(w, "  %s\n\n", line)
}

func displayTitle(r engine.Result) string {
	switch {
	case r.Artist != "" && r.Title != "":
		return r.Artist + " - " + r.Title
	case r.Title != "":
		return r.Title
	case r.Artist != "":
		return r.Artist
	default:
		return "(untitled)"
	}
}
