package catalog

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Store is an immutable, position-aligned metadata collection with O(1)
// lookup by identifier and posting lists for push-down filtering.
// It is safe for concurrent readers.
type Store struct {
	records   []Record
	positions map[string]int

	genres  map[string]*roaring.Bitmap
	years   map[int]*roaring.Bitmap
	flagged *roaring.Bitmap
}

// New indexes records. The slice is retained and must not be modified
// afterwards.
func New(records []Record) (*Store, error) {
	s := &Store{
		records:   records,
		positions: make(map[string]int, len(records)),
		genres:    make(map[string]*roaring.Bitmap),
		years:     make(map[int]*roaring.Bitmap),
		flagged:   roaring.New(),
	}

	for i, r := range records {
		if _, dup := s.positions[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		s.positions[r.ID] = i

		pos := uint32(i)
		if r.Genre != "" {
			bm, ok := s.genres[r.Genre]
			if !ok {
				bm = roaring.New()
				s.genres[r.Genre] = bm
			}
			bm.Add(pos)
		}
		if r.ReleaseYear != nil {
			bm, ok := s.years[*r.ReleaseYear]
			if !ok {
				bm = roaring.New()
				s.years[*r.ReleaseYear] = bm
			}
			bm.Add(pos)
		}
		if r.Flagged {
			s.flagged.Add(pos)
		}
	}

	for _, bm := range s.genres {
		bm.RunOptimize()
	}
	for _, bm := range s.years {
		bm.RunOptimize()
	}
	s.flagged.RunOptimize()

	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Records returns the backing slice. Callers must treat it as read-only.
func (s *Store) Records() []Record { return s.records }

// At returns the record at position i.
func (s *Store) At(i int) Record { return s.records[i] }

// Position returns the position of id.
func (s *Store) Position(id string) (int, bool) {
	i, ok := s.positions[id]
	return i, ok
}

// Lookup returns the record for id.
func (s *Store) Lookup(id string) (Record, bool) {
	i, ok := s.positions[id]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// Allowed returns the positions satisfying the record predicates of f, or
// nil when f has none (every position is allowed).
func (s *Store) Allowed(f Filter) *roaring.Bitmap {
	if f.Predicates() == PredicateNone {
		return nil
	}

	allowed := roaring.New()
	allowed.AddRange(0, uint64(len(s.records)))

	if f.Genre != "" {
		bm, ok := s.genres[f.Genre]
		if !ok {
			return roaring.New()
		}
		allowed.And(bm)
	}

	if f.YearMin != nil || f.YearMax != nil {
		if f.Inverted() {
			return roaring.New()
		}
		var inRange []*roaring.Bitmap
		for year, bm := range s.years {
			if f.YearMin != nil && year < *f.YearMin {
				continue
			}
			if f.YearMax != nil && year > *f.YearMax {
				continue
			}
			inRange = append(inRange, bm)
		}
		allowed.And(roaring.FastOr(inRange...))
	}

	if f.ExcludeFlagged {
		allowed.AndNot(s.flagged)
	}

	return allowed
}

// Distinct returns the sorted, deduplicated, non-empty values of field.
func (s *Store) Distinct(field Field) ([]string, error) {
	if field == FieldGenre {
		out := make([]string, 0, len(s.genres))
		for g := range s.genres {
			out = append(out, g)
		}
		slices.Sort(out)
		return out, nil
	}
	return Distinct(s.records, field)
}

// Distinct returns the sorted, deduplicated, non-empty values of field
// across records.
func Distinct(records []Record, field Field) ([]string, error) {
	seen := make(map[string]struct{})
	for _, r := range records {
		v, err := r.Value(field)
		if err != nil {
			return nil, err
		}
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}
