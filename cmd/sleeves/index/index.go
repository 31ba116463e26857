// Package indexcmder provides the index command for producing local search
// artifacts from an embedded album corpus.
package indexcmder

import (
	"github.com/spf13/cobra"
)

const indexLongDesc string = `Manage local search artifacts.

A local space is served from two artifacts: a vector index (flat, hnsw or
sqlitevec) and a metadata file. Both are written by "sleeves index build"
from a JSONL corpus and may live on disk or in S3.

Examples:
  sleeves index build corpus.jsonl
  sleeves index build corpus.jsonl --index-type hnsw --compress
  sleeves index build s3://covers/corpus.jsonl.zst --text`

const indexShortDesc string = "Manage local search artifacts"

func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
	}

	cmd.AddCommand(newBuildCmd())

	return cmd
}
