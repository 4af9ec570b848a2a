package ctf

import "sort"

// Sequence is the global challenge order: active challenges sorted by
// creation time, ties broken by ID. Accessibility is always derived from a
// team's solved set and never stored.
type Sequence struct {
	challenges []Challenge
}

func NewSequence(all []Challenge) Sequence {
	active := make([]Challenge, 0, len(all))
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})
	return Sequence{challenges: active}
}

func (s Sequence) Len() int { return len(s.challenges) }

func (s Sequence) At(i int) Challenge { return s.challenges[i] }

func (s Sequence) Challenges() []Challenge { return s.challenges }

// IndexOf returns the position of the challenge, or -1 when it is not in
// the active set.
func (s Sequence) IndexOf(id string) int {
	for i, c := range s.challenges {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s Sequence) IDs() []string {
	ids := make([]string, len(s.challenges))
	for i, c := range s.challenges {
		ids[i] = c.ID
	}
	return ids
}

// AccessibleIndex returns the lowest unsolved index. When everything is
// solved it returns the last index and Completed reports true; callers must
// treat that as terminal. An empty sequence yields -1.
func (s Sequence) AccessibleIndex(solved Set) int {
	for i, c := range s.challenges {
		if !solved.Has(c.ID) {
			return i
		}
	}
	return len(s.challenges) - 1
}

// IsAccessible holds iff every challenge before i is solved.
func (s Sequence) IsAccessible(i int, solved Set) bool {
	if i < 0 || i >= len(s.challenges) {
		return false
	}
	for _, c := range s.challenges[:i] {
		if !solved.Has(c.ID) {
			return false
		}
	}
	return true
}

// Completed reports whether solved covers the whole, non-empty sequence.
func (s Sequence) Completed(solved Set) bool {
	if len(s.challenges) == 0 {
		return false
	}
	for _, c := range s.challenges {
		if !solved.Has(c.ID) {
			return false
		}
	}
	return true
}
