package label

import "errors"

// Action names the label transitions recognized by the engine.
type Action string

const (
	ActionStar             Action = "star"
	ActionUnstar           Action = "unstar"
	ActionMarkRead         Action = "mark_read"
	ActionMarkUnread       Action = "mark_unread"
	ActionArchive          Action = "archive"
	ActionMoveToTrash      Action = "move_to_trash"
	ActionRestoreFromTrash Action = "restore_from_trash"
	ActionDeleteForever    Action = "delete_forever"
	ActionApplyLabel       Action = "apply_label"
	ActionRemoveLabel      Action = "remove_label"
	ActionCategorize       Action = "categorize"
)

// Params carries the optional argument of a transition: the restore target
// for restore_from_trash, or the label name for apply_label, remove_label
// and categorize.
type Params struct {
	Label string
}

// Outcome is the result of a transition. Delete is set only by
// delete_forever, which has no resulting label set.
type Outcome struct {
	Labels Set
	Delete bool
}

var (
	// ErrUnknownAction is returned for action names outside the transition table.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNotInTrash is returned when restore_from_trash targets a non-trashed email.
	ErrNotInTrash = errors.New("email is not in trash")
	// ErrMissingLabel is returned when a transition requires a label parameter.
	ErrMissingLabel = errors.New("label parameter required")
)

// Apply computes the label set resulting from a named transition. It is pure:
// the input set is never mutated, and no I/O happens here. Every transition is
// idempotent, and on error the returned outcome carries an unchanged copy of
// the input.
func Apply(labels Set, action Action, params Params) (Outcome, error) {
	out := labels.Clone()

	switch action {
	case ActionStar:
		// starred and yellow_star always travel together.
		out.Add(Starred)
		out.Add(YellowStar)

	case ActionUnstar:
		out.Remove(Starred)
		out.Remove(YellowStar)

	case ActionMarkRead:
		out.Remove(Unread)

	case ActionMarkUnread:
		out.Add(Unread)

	case ActionArchive:
		clearPlacement(out)
		out.Add(All)

	case ActionMoveToTrash:
		// Trash is absorbing: every other label is dropped.
		out = NewSet(Trash)

	case ActionRestoreFromTrash:
		if !out.Has(Trash) {
			return Outcome{Labels: labels.Clone()}, ErrNotInTrash
		}
		target := params.Label
		if target == "" {
			target = Inbox
		}
		out.Remove(Trash)
		placeIn(out, target)

	case ActionDeleteForever:
		return Outcome{Delete: true}, nil

	case ActionApplyLabel:
		if params.Label == "" {
			return Outcome{Labels: labels.Clone()}, ErrMissingLabel
		}
		// Applying a placement or category label is a move, not a union:
		// placement exclusivity must hold here too. Flags and custom
		// labels accumulate.
		if IsPlacement(params.Label) || IsCategory(params.Label) {
			placeIn(out, params.Label)
		} else {
			out.Add(params.Label)
		}

	case ActionRemoveLabel:
		if params.Label == "" {
			return Outcome{Labels: labels.Clone()}, ErrMissingLabel
		}
		out.Remove(params.Label)

	case ActionCategorize:
		if params.Label == "" {
			return Outcome{Labels: labels.Clone()}, ErrMissingLabel
		}
		placeIn(out, params.Label)

	default:
		return Outcome{Labels: labels.Clone()}, ErrUnknownAction
	}

	return Outcome{Labels: out}, nil
}

// clearPlacement drops every placement label from the set.
func clearPlacement(s Set) {
	for name := range placements {
		s.Remove(name)
	}
}

// placeIn moves the set to a new placement target, keeping placement
// exclusivity. A category target implies the inbox: the message lands on the
// matching inbox tab, replacing any previous category.
func placeIn(s Set, target string) {
	clearPlacement(s)
	if IsCategory(target) {
		for name := range categories {
			s.Remove(name)
		}
		s.Add(Inbox)
		s.Add(target)
		return
	}
	s.Add(target)
}
