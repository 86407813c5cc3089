package gmail

import (
	"strings"

	"github.com/inboxd/inboxd/internal/label"
)

// toProviderID maps local label names to Gmail label IDs. yellow_star is a
// display variant of STARRED and all has no Gmail label (archiving is just
// the absence of a placement), so neither appears here.
var toProviderID = map[string]string{
	label.Inbox:              "INBOX",
	label.Sent:               "SENT",
	label.Draft:              "DRAFT",
	label.Trash:              "TRASH",
	label.Spam:               "SPAM",
	label.Starred:            "STARRED",
	label.Important:          "IMPORTANT",
	label.Unread:             "UNREAD",
	label.CategorySocial:     "CATEGORY_SOCIAL",
	label.CategoryPromotions: "CATEGORY_PROMOTIONS",
	label.CategoryUpdates:    "CATEGORY_UPDATES",
	label.CategoryForums:     "CATEGORY_FORUMS",
}

var fromProviderID = func() map[string]string {
	m := make(map[string]string, len(toProviderID))
	for name, id := range toProviderID {
		m[id] = name
	}
	return m
}()

// ToProviderID converts a local label name to its Gmail label ID. The second
// return is false for labels Gmail has no ID for.
func ToProviderID(name string) (string, bool) {
	id, ok := toProviderID[name]
	return id, ok
}

// FromProviderID converts a Gmail label ID to the local label name. Unknown
// IDs (user labels, CHAT, colored stars) map to their lowercased form so
// custom labels survive a round trip.
func FromProviderID(id string) (string, bool) {
	if name, ok := fromProviderID[id]; ok {
		return name, true
	}
	if strings.HasPrefix(id, "CATEGORY_") || id == "CHAT" {
		return "", false
	}
	return strings.ToLower(id), true
}

// Vocabulary returns the local label names Gmail owns an ID for. The sync
// reconciler merges only over this set; everything else stays local.
func Vocabulary() label.Set {
	v := label.NewSet()
	for name := range toProviderID {
		v.Add(name)
	}
	return v
}

// SetFromIDs converts a Gmail label ID list into a local label set, dropping
// IDs with no local meaning. A STARRED message also gets the paired
// yellow_star so the stored state matches what a local star action produces.
func SetFromIDs(ids []string) label.Set {
	s := label.NewSet()
	for _, id := range ids {
		if name, ok := FromProviderID(id); ok {
			s.Add(name)
		}
	}
	if s.Has(label.Starred) {
		s.Add(label.YellowStar)
	}
	if s.Placement() == "" {
		s.Add(label.All)
	}
	return s
}

// Delta computes the add/remove label lists that turn prev into next,
// restricted to labels Gmail has an ID for. The results are local names;
// ApplyLabelDelta maps them onto provider IDs at the wire.
func Delta(prev, next label.Set) (add, remove []string) {
	for _, name := range next.Slice() {
		if !prev.Has(name) {
			if _, ok := ToProviderID(name); ok {
				add = append(add, name)
			}
		}
	}
	for _, name := range prev.Slice() {
		if !next.Has(name) {
			if _, ok := ToProviderID(name); ok {
				remove = append(remove, name)
			}
		}
	}
	return add, remove
}
