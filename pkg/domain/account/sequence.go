package account

import (
	"fmt"
	"math"

	"github.com/amirasaad/accrual/pkg/domain"
)

// ErrOutOfSequence is returned when an admission id is not the successor of
// the latest admitted id.
var ErrOutOfSequence = fmt.Errorf("%w: account id is not next in sequence", domain.ErrSequence)

// Sequence tracks which account ids have been admitted. Ids are contiguous from
// First to Latest. Started distinguishes "nothing admitted" from "id 0 admitted".
type Sequence struct {
	Latest  uint64
	First   uint64
	Started bool
}

// Next validates that id may be admitted and returns the advanced sequence.
// The first admission may use any id; every later one must be Latest+1.
func (s Sequence) Next(id uint64) (Sequence, error) {
	if !s.Started {
		return Sequence{Latest: id, First: id, Started: true}, nil
	}
	if s.Latest == math.MaxUint64 || id != s.Latest+1 {
		return s, fmt.Errorf("%w: expected %d, got %d", ErrOutOfSequence, s.expected(), id)
	}
	s.Latest = id
	return s, nil
}

// Range returns the inclusive id range scanned for ready accounts.
func (s Sequence) Range() (from, to uint64, ok bool) {
	if !s.Started {
		return 0, 0, false
	}
	return s.First, s.Latest, true
}

// Contains reports whether id has been admitted.
func (s Sequence) Contains(id uint64) bool {
	return s.Started && id >= s.First && id <= s.Latest
}

func (s Sequence) expected() uint64 {
	if s.Latest == math.MaxUint64 {
		return s.Latest
	}
	return s.Latest + 1
}

// BatchOf returns the batch namespace an id belongs to.
func BatchOf(id, batchSize uint64) uint64 {
	if batchSize == 0 {
		return 0
	}
	return id / batchSize
}
