package catalog

// Predicate is a bit set of the record predicates a Filter can carry.
// Backends advertise which ones they evaluate server-side.
type Predicate uint8

const (
	PredicateGenre Predicate = 1 << iota
	PredicateYear
	PredicateFlag

	PredicateNone Predicate = 0
	PredicateAll            = PredicateGenre | PredicateYear | PredicateFlag
)

// Has reports whether every bit of q is set in p.
func (p Predicate) Has(q Predicate) bool {
	return p&q == q
}

// Filter constrains a search. Zero values mean "no constraint".
// YearMin and YearMax are inclusive; MinSimilarity is exclusive.
type Filter struct {
	Genre          string   `json:"genre,omitempty"`
	YearMin        *int     `json:"year_min,omitempty"`
	YearMax        *int     `json:"year_max,omitempty"`
	MinSimilarity  *float32 `json:"min_similarity,omitempty"`
	ExcludeFlagged bool     `json:"exclude_flagged,omitempty"`
}

// Predicates returns the record predicates present in f. MinSimilarity is
// not a record predicate.
func (f Filter) Predicates() Predicate {
	var p Predicate
	if f.Genre != "" {
		p |= PredicateGenre
	}
	if f.YearMin != nil || f.YearMax != nil {
		p |= PredicateYear
	}
	if f.ExcludeFlagged {
		p |= PredicateFlag
	}
	return p
}

// Empty reports whether f constrains nothing at all.
func (f Filter) Empty() bool {
	return f.Predicates() == PredicateNone && !f.HasThreshold()
}

// HasThreshold reports whether f carries a positive similarity threshold.
// A zero or negative MinSimilarity filters nothing.
func (f Filter) HasThreshold() bool {
	return f.MinSimilarity != nil && *f.MinSimilarity > 0
}

// Inverted reports whether the year bounds describe an empty range.
func (f Filter) Inverted() bool {
	return f.YearMin != nil && f.YearMax != nil && *f.YearMin > *f.YearMax
}

// Matches evaluates the record predicates of f against r. A record with no
// release year never satisfies a year bound.
func (f Filter) Matches(r Record) bool {
	if f.Genre != "" && r.Genre != f.Genre {
		return false
	}
	if f.YearMin != nil || f.YearMax != nil {
		if r.ReleaseYear == nil {
			return false
		}
		if f.YearMin != nil && *r.ReleaseYear < *f.YearMin {
			return false
		}
		if f.YearMax != nil && *r.ReleaseYear > *f.YearMax {
			return false
		}
	}
	if f.ExcludeFlagged && r.Flagged {
		return false
	}
	return true
}

// Split divides f into the part a backend supporting the given predicates
// can evaluate and the remainder that must be applied after retrieval.
// A positive MinSimilarity always lands in the remainder.
func (f Filter) Split(supported Predicate) (pushed, post Filter) {
	if f.Genre != "" {
		if supported.Has(PredicateGenre) {
			pushed.Genre = f.Genre
		} else {
			post.Genre = f.Genre
		}
	}
	if f.YearMin != nil || f.YearMax != nil {
		if supported.Has(PredicateYear) {
			pushed.YearMin, pushed.YearMax = f.YearMin, f.YearMax
		} else {
			post.YearMin, post.YearMax = f.YearMin, f.YearMax
		}
	}
	if f.ExcludeFlagged {
		if supported.Has(PredicateFlag) {
			pushed.ExcludeFlagged = true
		} else {
			post.ExcludeFlagged = true
		}
	}
	if f.HasThreshold() {
		post.MinSimilarity = f.MinSimilarity
	}
	return pushed, post
}
