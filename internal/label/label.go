package label

import (
	"encoding/json"
	"sort"
)

// Fixed label vocabulary recognized by the engine. Labels outside this set are
// preserved but never interpreted.
const (
	Inbox     = "inbox"
	Sent      = "sent"
	Draft     = "draft"
	Trash     = "trash"
	Spam      = "spam"
	All       = "all"
	Starred   = "starred"
	YellowStar = "yellow_star"
	Important = "important"
	Unread    = "unread"

	CategorySocial     = "category_social"
	CategoryPromotions = "category_promotions"
	CategoryUpdates    = "category_updates"
	CategoryForums     = "category_forums"
)

// placements are mutually exclusive locations of a message.
var placements = map[string]bool{
	Inbox: true,
	Sent:  true,
	Draft: true,
	Trash: true,
	Spam:  true,
	All:   true,
}

var categories = map[string]bool{
	CategorySocial:     true,
	CategoryPromotions: true,
	CategoryUpdates:    true,
	CategoryForums:     true,
}

// IsPlacement reports whether name is one of the mutually exclusive placement labels.
func IsPlacement(name string) bool {
	return placements[name]
}

// IsCategory reports whether name is one of the Gmail-style inbox category labels.
func IsCategory(name string) bool {
	return categories[name]
}

// Set is an unordered collection of label tokens with no duplicates.
// It is the authoritative categorization state of an email.
type Set map[string]struct{}

// NewSet builds a set from the given labels.
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Has reports whether the set contains name.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name into the set.
func (s Set) Add(name string) {
	s[name] = struct{}{}
}

// Remove deletes name from the set.
func (s Set) Remove(name string) {
	delete(s, name)
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}

// Equal reports whether both sets contain exactly the same labels.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for l := range s {
		if !other.Has(l) {
			return false
		}
	}
	return true
}

// Slice returns the labels sorted alphabetically.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Placement returns the placement label carried by the set, or "" if none.
// A well-formed set carries at most one; if several are present the first in
// sorted order is returned so callers stay deterministic.
func (s Set) Placement() string {
	for _, l := range s.Slice() {
		if IsPlacement(l) {
			return l
		}
	}
	return ""
}

// MarshalJSON serializes the set as a sorted string array. Serialization
// happens once at the store boundary, never ad hoc at call sites.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON accepts a string array.
func (s *Set) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*s = NewSet(labels...)
	return nil
}
