// Package cefr models the six-level CEFR proficiency ladder used for placement.
package cefr

// Level is a CEFR proficiency label.
type Level string

const (
	A1 Level = "A1"
	A2 Level = "A2"
	B1 Level = "B1"
	B2 Level = "B2"
	C1 Level = "C1"
	C2 Level = "C2"
)

// Levels lists the ladder from lowest to highest.
var Levels = []Level{A1, A2, B1, B2, C1, C2}

// Default is the starting estimate for a new placement session.
const Default = B1

// Valid reports whether l is one of the canonical labels. Matching is exact:
// "b2" and " B2" are not valid.
func (l Level) Valid() bool {
	return l.index() >= 0
}

func (l Level) String() string {
	return string(l)
}

func (l Level) index() int {
	for i, v := range Levels {
		if v == l {
			return i
		}
	}
	return -1
}

// StepUp returns the next harder level, or l itself at the top of the ladder.
// Unknown labels fall back to Default.
func StepUp(l Level) Level {
	i := l.index()
	if i < 0 {
		return Default
	}
	return Levels[min(i+1, len(Levels)-1)]
}

// StepDown returns the next easier level, or l itself at the bottom of the ladder.
// Unknown labels fall back to Default.
func StepDown(l Level) Level {
	i := l.index()
	if i < 0 {
		return Default
	}
	return Levels[max(i-1, 0)]
}

// Compare returns -1 if a < b, 0 if a == b and +1 if a > b.
func Compare(a, b Level) int {
	ia, ib := a.index(), b.index()
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}

// LowestOf returns the lower of two levels.
func LowestOf(a, b Level) Level {
	if Compare(a, b) <= 0 {
		return a
	}
	return b
}

// FromWritingScore maps a 0..15 writing score onto the ladder.
// Writing alone never certifies A1 or C2.
func FromWritingScore(score int) Level {
	switch {
	case score <= 4:
		return A2
	case score <= 7:
		return B1
	case score <= 11:
		return B2
	default:
		return C1
	}
}

// Bucket is the coarse proficiency scale stored on learner profiles.
type Bucket string

const (
	BucketBeginner     Bucket = "beginner"
	BucketIntermediate Bucket = "intermediate"
	BucketAdvanced     Bucket = "advanced"
)

// Bucket maps a level into the three-bucket scale.
func (l Level) Bucket() Bucket {
	switch l {
	case A1, A2:
		return BucketBeginner
	case C1, C2:
		return BucketAdvanced
	default:
		return BucketIntermediate
	}
}
