// Package workflow holds the approval chain state machine: the legal status
// values, the transition table and the queue predicates used by every
// dashboard.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrRemarksRequired   = errors.New("remarks are required to reject")
	ErrUnknownItem       = errors.New("work item not found")
)

type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionForward  Action = "forward"
	ActionResubmit Action = "resubmit"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject, ActionForward, ActionResubmit:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Transition is one row of the table. An empty Section leaves forwardedTo as is.
type Transition struct {
	From    domain.Status `json:"from"`
	Role    domain.Role   `json:"role"`
	Action  Action        `json:"action"`
	To      domain.Status `json:"to"`
	Section string        `json:"section,omitempty"`
}

var rejectedStatuses = []domain.Status{
	domain.StatusCommissionerRejected,
	domain.StatusEEPHRejected,
	domain.StatusSEPHRejected,
	domain.StatusENCPHRejected,
	domain.StatusRejected,
}

var approvedStatus = map[domain.Role]domain.Status{
	domain.RoleCommissioner: domain.StatusCommissionerApproved,
	domain.RoleEEPH:         domain.StatusEEPHApproved,
	domain.RoleSEPH:         domain.StatusSEPHApproved,
	domain.RoleENCPH:        domain.StatusENCPHApproved,
	domain.RoleCDMA:         domain.StatusCDMAApproved,
}

func transitions() []Transition {
	ts := []Transition{
		{From: domain.StatusDraft, Role: domain.RoleEngineer, Action: ActionForward, To: domain.StatusPendingReview, Section: TagCommissioner},

		{From: domain.StatusPendingReview, Role: domain.RoleCommissioner, Action: ActionApprove, To: domain.StatusCommissionerApproved},
		{From: domain.StatusPendingReview, Role: domain.RoleCommissioner, Action: ActionReject, To: domain.StatusCommissionerRejected, Section: TagEngineer},
		{From: domain.StatusPendingReview, Role: domain.RoleCommissioner, Action: ActionForward, To: domain.StatusPendingReview, Section: TagEEPH},
		{From: domain.StatusCommissionerApproved, Role: domain.RoleCommissioner, Action: ActionForward, To: domain.StatusPendingReview, Section: TagEEPH},

		{From: domain.StatusPendingReview, Role: domain.RoleEEPH, Action: ActionApprove, To: domain.StatusEEPHApproved},
		{From: domain.StatusPendingReview, Role: domain.RoleEEPH, Action: ActionReject, To: domain.StatusEEPHRejected, Section: TagEngineer},
		{From: domain.StatusEEPHApproved, Role: domain.RoleEEPH, Action: ActionForward, To: domain.StatusForwardedToSEPH, Section: TagSEPH},

		{From: domain.StatusForwardedToSEPH, Role: domain.RoleSEPH, Action: ActionApprove, To: domain.StatusSEPHApproved},
		{From: domain.StatusForwardedToSEPH, Role: domain.RoleSEPH, Action: ActionReject, To: domain.StatusSEPHRejected, Section: TagEngineer},
		{From: domain.StatusSEPHApproved, Role: domain.RoleSEPH, Action: ActionForward, To: domain.StatusForwardedToENCPH, Section: TagENCPH},

		{From: domain.StatusForwardedToENCPH, Role: domain.RoleENCPH, Action: ActionApprove, To: domain.StatusENCPHApproved},
		{From: domain.StatusForwardedToENCPH, Role: domain.RoleENCPH, Action: ActionReject, To: domain.StatusENCPHRejected, Section: TagEngineer},
		{From: domain.StatusENCPHApproved, Role: domain.RoleENCPH, Action: ActionForward, To: domain.StatusForwardedToCDMA, Section: TagCDMA},

		{From: domain.StatusForwardedToCDMA, Role: domain.RoleCDMA, Action: ActionApprove, To: domain.StatusCDMAApproved},
		{From: domain.StatusForwardedToCDMA, Role: domain.RoleCDMA, Action: ActionReject, To: domain.StatusRejected, Section: TagEngineer},
	}
	for _, s := range rejectedStatuses {
		ts = append(ts, Transition{From: s, Role: domain.RoleEngineer, Action: ActionResubmit, To: domain.StatusPendingReview, Section: TagCommissioner})
	}
	return ts
}

type tableKey struct {
	from   domain.Status
	role   domain.Role
	action Action
}

var table = func() map[tableKey]Transition {
	m := map[tableKey]Transition{}
	for _, t := range transitions() {
		m[tableKey{t.From, t.Role, t.Action}] = t
	}
	return m
}()

// Transitions returns a copy of the full table.
func Transitions() []Transition {
	return transitions()
}

// Holder is the tag of the role whose desk the item is on. Drafts and
// rejected items belong to the originator.
func Holder(item domain.WorkItem) string {
	if item.Status == domain.StatusDraft || IsRejected(item.Status) {
		return TagEngineer
	}
	return item.ForwardedTo.Section
}

func lookup(item domain.WorkItem, role domain.Role, action Action) (Transition, bool) {
	tag := Tag(role)
	if tag == "" || Holder(item) != tag {
		return Transition{}, false
	}
	t, ok := table[tableKey{item.Status, role, action}]
	return t, ok
}

// CanApply reports whether role may apply action to item in its current state.
func CanApply(item domain.WorkItem, role domain.Role, action Action) bool {
	_, ok := lookup(item, role, action)
	return ok
}

// Available lists the transitions role may apply to item right now.
func Available(item domain.WorkItem, role domain.Role) []Transition {
	var res []Transition
	for _, a := range []Action{ActionApprove, ActionReject, ActionForward, ActionResubmit} {
		if t, ok := lookup(item, role, a); ok {
			res = append(res, t)
		}
	}
	return res
}

// Apply returns the item after the transition. On failure the input item is
// returned unchanged together with the error.
func Apply(item domain.WorkItem, role domain.Role, action Action, remarks string) (domain.WorkItem, error) {
	t, ok := lookup(item, role, action)
	if !ok {
		return item, fmt.Errorf("%w: %s cannot %s work %s in status %q", ErrIllegalTransition, role, action, item.ID, item.Status)
	}
	remarks = strings.TrimSpace(remarks)
	if action == ActionReject && remarks == "" {
		return item, ErrRemarksRequired
	}
	next := item
	next.Status = t.To
	if t.Section != "" {
		next.ForwardedTo = domain.ForwardedTo{Department: Department(t.Section), Section: t.Section}
	}
	switch action {
	case ActionReject:
		next.RejectedBy = Tag(role)
		next.Remarks = remarks
	case ActionResubmit:
		next.RejectedBy = ""
		next.Remarks = remarks
	default:
		if remarks != "" {
			next.Remarks = remarks
		}
	}
	return next, nil
}

// ApplyAll applies the same transition to every item named in ids and returns
// the new collection. Nothing is returned unless all selected items pass.
func ApplyAll(items []domain.WorkItem, ids []string, role domain.Role, action Action, remarks string) ([]domain.WorkItem, []domain.WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: no work items selected", ErrIllegalTransition)
	}
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}
	next := make([]domain.WorkItem, len(items))
	copy(next, items)
	seen := map[string]bool{}
	var changed []domain.WorkItem
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		i, ok := index[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		updated, err := Apply(items[i], role, action, remarks)
		if err != nil {
			return nil, nil, err
		}
		next[i] = updated
		changed = append(changed, updated)
	}
	return next, changed, nil
}

func IsRejected(s domain.Status) bool {
	for _, r := range rejectedStatuses {
		if s == r {
			return true
		}
	}
	return false
}

// Terminal reports whether no reviewer can move the item any further.
func Terminal(item domain.WorkItem) bool {
	return item.Status == domain.StatusCDMAApproved || IsRejected(item.Status)
}

// ApprovedStatus is the status role sets when approving; empty for the
// originator.
func ApprovedStatus(r domain.Role) domain.Status {
	return approvedStatus[r]
}

// Stage is the chain index of the holder; a fully approved item is past the
// end of the chain.
func Stage(item domain.WorkItem) int {
	if item.Status == domain.StatusCDMAApproved {
		return len(Chain)
	}
	r, ok := RoleByTag(Holder(item))
	if !ok {
		return -1
	}
	return Index(r)
}
