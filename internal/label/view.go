package label

// ViewKey identifies a mailbox listing.
type ViewKey string

const (
	ViewInbox     ViewKey = "inbox"
	ViewStarred   ViewKey = "starred"
	ViewImportant ViewKey = "important"
	ViewSent      ViewKey = "sent"
	ViewDraft     ViewKey = "draft"
	ViewAll       ViewKey = "all"
	ViewSpam      ViewKey = "spam"
	ViewTrash     ViewKey = "trash"
)

// Tab is a category sub-view of the inbox.
type Tab string

const (
	TabPrimary    Tab = "Primary"
	TabSocial     Tab = "Social"
	TabPromotions Tab = "Promotions"
	TabUpdates    Tab = "Updates"
	TabForums     Tab = "Forums"
)

// View is a derived mailbox listing: a view key plus, for the inbox, the
// category tab the message falls under.
type View struct {
	Key ViewKey
	Tab Tab
}

var categoryTabs = map[string]Tab{
	CategorySocial:     TabSocial,
	CategoryPromotions: TabPromotions,
	CategoryUpdates:    TabUpdates,
	CategoryForums:     TabForums,
}

// CategoryForTab returns the category label backing a non-Primary inbox tab.
func CategoryForTab(tab Tab) (string, bool) {
	for name, t := range categoryTabs {
		if t == tab {
			return name, true
		}
	}
	return "", false
}

// DeriveView maps a label set to the view it belongs to. It is total: every
// label set maps to exactly one view, defaulting to the "all" view when no
// placement label is present. Messages in the inbox land on the Primary tab
// unless they carry a category label.
func DeriveView(labels Set) View {
	switch labels.Placement() {
	case Trash:
		return View{Key: ViewTrash}
	case Spam:
		return View{Key: ViewSpam}
	case Sent:
		return View{Key: ViewSent}
	case Draft:
		return View{Key: ViewDraft}
	case Inbox:
		for _, l := range labels.Slice() {
			if tab, ok := categoryTabs[l]; ok {
				return View{Key: ViewInbox, Tab: tab}
			}
		}
		return View{Key: ViewInbox, Tab: TabPrimary}
	default:
		// "all" placement or no placement at all.
		return View{Key: ViewAll}
	}
}
