package auth

import "sort"

// AdminSet is the immutable allowlist of Telegram user ids with admin rights.
type AdminSet struct {
	ids map[int64]struct{}
}

func NewAdminSet(ids ...int64) AdminSet {
	set := AdminSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

func (s AdminSet) Contains(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

func (s AdminSet) Len() int {
	return len(s.ids)
}

// IDs returns the members in ascending order.
func (s AdminSet) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
