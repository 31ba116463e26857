// Package sleevescmder is the root of the sleeves command tree.
package sleevescmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/sleeves/cmd/sleeves/config"
	genrescmder "github.com/papercomputeco/sleeves/cmd/sleeves/genres"
	indexcmder "github.com/papercomputeco/sleeves/cmd/sleeves/index"
	initcmder "github.com/papercomputeco/sleeves/cmd/sleeves/init"
	searchcmder "github.com/papercomputeco/sleeves/cmd/sleeves/search"
	servecmder "github.com/papercomputeco/sleeves/cmd/sleeves/serve"
	statscmder "github.com/papercomputeco/sleeves/cmd/sleeves/stats"
	versioncmder "github.com/papercomputeco/sleeves/cmd/version"
)

const sleevesLongDesc string = `Sleeves finds albums whose cover art looks alike.

Build an index from an embedded corpus, then serve it:
  sleeves index build corpus.jsonl    Write index and metadata artifacts
  sleeves serve                       Run the search API server

Query a running server:
  sleeves search "neon city at night"
  sleeves search --image cover.jpg
  sleeves genres
  sleeves stats`

const sleevesShortDesc string = "Sleeves - album cover similarity search"

func NewSleevesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sleeves",
		Short:         sleevesShortDesc,
		Long:          sleevesLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .sleeves/ directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(genrescmder.NewGenresCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
