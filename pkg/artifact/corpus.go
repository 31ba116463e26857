package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

// CorpusItem is one line of a JSONL build corpus: the record's metadata
// plus its cover embedding and an optional description embedding.
type CorpusItem struct {
	catalog.Record
	Embedding     []float32 `json:"embedding"`
	TextEmbedding []float32 `json:"text_embedding,omitempty"`
}

const maxCorpusLine = 16 << 20

// ReadCorpus parses a JSONL corpus. Blank lines are ignored.
func ReadCorpus(r io.Reader) ([]CorpusItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxCorpusLine)

	var (
		items []CorpusItem
		line  int
	)
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}

		var item CorpusItem
		if err := json.Unmarshal(b, &item); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
		if item.ID == "" {
			return nil, fmt.Errorf("corpus line %d: %w: missing id", line, vector.ErrInvalidArgument)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("corpus line %d: %w: missing embedding", line, vector.ErrInvalidArgument)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}

	return items, nil
}

// Entries returns the cover embeddings of items, or the description
// embeddings when text is set. Items without a description embedding are
// omitted from the text space.
func Entries(items []CorpusItem, text bool) []vector.Entry {
	entries := make([]vector.Entry, 0, len(items))
	for _, it := range items {
		emb := it.Embedding
		if text {
			emb = it.TextEmbedding
		}
		if len(emb) == 0 {
			continue
		}
		entries = append(entries, vector.Entry{ID: it.ID, Embedding: emb})
	}
	return entries
}

// Records returns the metadata of items in corpus order.
func Records(items []CorpusItem) []catalog.Record {
	records := make([]catalog.Record, len(items))
	for i, it := range items {
		records[i] = it.Record
	}
	return records
}
