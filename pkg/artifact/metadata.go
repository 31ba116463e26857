package artifact

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/papercomputeco/sleeves/pkg/catalog"
)

// MetadataVersion is the current metadata collection format version.
const MetadataVersion = 1

type metadataCollection struct {
	Version int              `msgpack:"version"`
	Records []catalog.Record `msgpack:"records"`
}

// WriteMetadata encodes records as a msgpack metadata collection.
func WriteMetadata(w io.Writer, records []catalog.Record) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(metadataCollection{Version: MetadataVersion, Records: records}); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return nil
}

// ReadMetadata decodes a metadata collection written by WriteMetadata.
func ReadMetadata(r io.Reader) ([]catalog.Record, error) {
	var c metadataCollection
	if err := msgpack.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if c.Version != MetadataVersion {
		return nil, fmt.Errorf("unsupported metadata version %d", c.Version)
	}
	return c.Records, nil
}
