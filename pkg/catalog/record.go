// Package catalog holds the per-album metadata that is joined onto vector
// search hits, and the filters evaluated against it.
package catalog

// Record is the metadata for one corpus item. It shares its ID with the
// vector index entry it describes. Empty strings stand for missing values.
type Record struct {
	ID          string   `json:"id" msgpack:"id"`
	Artist      string   `json:"artist,omitempty" msgpack:"artist"`
	Title       string   `json:"title,omitempty" msgpack:"title"`
	Genre       string   `json:"genre,omitempty" msgpack:"genre"`
	ReleaseYear *int     `json:"release_year,omitempty" msgpack:"release_year"`
	Score       *float64 `json:"score,omitempty" msgpack:"score"`
	Flagged     bool     `json:"flagged" msgpack:"flagged"`
	CoverURL    string   `json:"cover_url,omitempty" msgpack:"cover_url"`
}

// Field names a string attribute of a Record.
type Field string

const (
	FieldGenre  Field = "genre"
	FieldArtist Field = "artist"
	FieldTitle  Field = "title"
)

// Value returns the named string attribute of r.
func (r Record) Value(f Field) (string, error) {
	switch f {
	case FieldGenre:
		return r.Genre, nil
	case FieldArtist:
		return r.Artist, nil
	case FieldTitle:
		return r.Title, nil
	default:
		return "", UnknownFieldError(f)
	}
}
