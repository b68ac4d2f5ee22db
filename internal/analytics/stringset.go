package analytics

import "encoding/json"

// stringSet is an insertion-ordered set of strings. It serializes as a JSON
// array and rehydrates back into a set, deduplicating while preserving the
// first occurrence's position.
type stringSet struct {
	items []string
	index map[string]struct{}
}

func newStringSet(items ...string) *stringSet {
	s := &stringSet{}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts the item and reports whether it was new.
func (s *stringSet) Add(item string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

func (s *stringSet) Contains(item string) bool {
	if s == nil || s.index == nil {
		return false
	}
	_, ok := s.index[item]
	return ok
}

func (s *stringSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns the members in insertion order. The slice is a copy.
func (s *stringSet) Items() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.items...)
}

func (s *stringSet) MarshalJSON() ([]byte, error) {
	if s == nil || s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *stringSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.items = nil
	s.index = make(map[string]struct{}, len(raw))
	for _, it := range raw {
		if _, ok := s.index[it]; ok {
			continue
		}
		s.index[it] = struct{}{}
		s.items = append(s.items, it)
	}
	return nil
}
