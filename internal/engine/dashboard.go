package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine/auth"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/events"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/workflow"
)

type View string

const (
	ViewPending   View = "pending"
	ViewApproved  View = "approved"
	ViewForwarded View = "forwarded"
	ViewRejected  View = "rejected"
	ViewSentBack  View = "sent-back"
	ViewAll       View = "all"
)

var views = []View{ViewPending, ViewApproved, ViewForwarded, ViewRejected, ViewSentBack}

func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	if v == ViewAll {
		return v, nil
	}
	for _, known := range views {
		if v == known {
			return v, nil
		}
	}
	return "", invalid("view", "unknown dashboard view %q", s)
}

func (e Engine) predicate(p domain.Principal, v View) func(domain.WorkItem) bool {
	role := p.Role
	var keep func(domain.WorkItem) bool
	switch v {
	case ViewPending:
		keep = func(w domain.WorkItem) bool { return e.Match(w, role) }
	case ViewApproved:
		keep = func(w domain.WorkItem) bool { return workflow.ApprovedBy(w, role) }
	case ViewForwarded:
		keep = func(w domain.WorkItem) bool { return workflow.ForwardedBeyond(w, role) }
	case ViewRejected:
		keep = func(w domain.WorkItem) bool { return workflow.RejectedBy(w, role) }
	case ViewSentBack:
		keep = func(w domain.WorkItem) bool { return workflow.SentBack(w, role) }
	default:
		keep = func(domain.WorkItem) bool { return true }
	}
	if role == domain.RoleEngineer {
		inner := keep
		keep = func(w domain.WorkItem) bool { return e.owns(p, w) && inner(w) }
	}
	return keep
}

// Dashboard lists the shared works in one view of the caller's dashboard.
func (e Engine) Dashboard(p domain.Principal, v View) ([]domain.WorkItem, error) {
	if err := auth.RequireRole(p, workflow.Chain...); err != nil {
		return nil, err
	}
	return e.Store.Snapshot().Filter(e.predicate(p, v)), nil
}

// Counts returns the size of every view for the caller.
func (e Engine) Counts(p domain.Principal) (map[View]int, error) {
	if err := auth.RequireRole(p, workflow.Chain...); err != nil {
		return nil, err
	}
	snap := e.Store.Snapshot()
	res := make(map[View]int, len(views))
	for _, v := range views {
		res[v] = len(snap.Filter(e.predicate(p, v)))
	}
	return res, nil
}

// CRGroup is the works of one CR. Works created outside a cycle share the
// group with an empty CR number.
type CRGroup struct {
	CRNumber string            `json:"crNumber"`
	CRDate   string            `json:"crDate,omitempty"`
	Total    decimal.Decimal   `json:"total"`
	Items    []domain.WorkItem `json:"items"`
}

// ByCR groups a view by CR number. Groups are sorted by CR number with the
// ungrouped works last.
func (e Engine) ByCR(p domain.Principal, v View) ([]CRGroup, error) {
	items, err := e.Dashboard(p, v)
	if err != nil {
		return nil, err
	}
	return GroupByCR(items), nil
}

func GroupByCR(items []domain.WorkItem) []CRGroup {
	index := map[string]int{}
	var groups []CRGroup
	for _, it := range items {
		key := it.CRLabel()
		i, ok := index[key]
		if !ok {
			g := CRGroup{CRNumber: key, Total: decimal.Zero}
			if it.CRDate != nil {
				g.CRDate = *it.CRDate
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Items = append(groups[i].Items, it)
		groups[i].Total = groups[i].Total.Add(it.Cost)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].CRNumber, groups[j].CRNumber
		if a == "" || b == "" {
			return b == "" && a != ""
		}
		return a < b
	})
	return groups
}

// Get returns one shared work.
func (e Engine) Get(p domain.Principal, id string) (domain.WorkItem, error) {
	if err := auth.RequireRole(p, workflow.Chain...); err != nil {
		return domain.WorkItem{}, err
	}
	it, err := e.Store.Get(id)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if p.Role == domain.RoleEngineer && !e.owns(p, it) {
		return domain.WorkItem{}, ErrNotOwner
	}
	return it, nil
}

// Available lists the actions the caller may take on a work right now.
func (e Engine) Available(p domain.Principal, id string) ([]workflow.Action, error) {
	it, err := e.Get(p, id)
	if err != nil {
		return nil, err
	}
	var res []workflow.Action
	for _, t := range workflow.Available(it, p.Role) {
		res = append(res, t.Action)
	}
	return res, nil
}

// Act applies one action to every selected work as a single store change.
// If any work fails its guard nothing changes.
func (e Engine) Act(ctx context.Context, p domain.Principal, action workflow.Action, ids []string, remarks string) ([]domain.WorkItem, error) {
	switch action {
	case workflow.ActionApprove, workflow.ActionReject, workflow.ActionForward:
		if err := auth.RequireReviewer(p); err != nil {
			return nil, err
		}
	case workflow.ActionResubmit:
		if err := auth.RequireOriginator(p); err != nil {
			return nil, err
		}
	default:
		return nil, invalid("action", "unknown action %q", action)
	}
	if len(ids) == 0 {
		return nil, invalid("ids", "select at least one work")
	}
	log := e.Log.WithFields(logrus.Fields{"role": p.Role, "action": action})
	var changed []domain.WorkItem
	_, err := e.Store.Apply(ctx, func(items []domain.WorkItem) ([]domain.WorkItem, error) {
		if action == workflow.ActionResubmit {
			for _, id := range ids {
				if i := indexOf(items, id); i >= 0 && !e.owns(p, items[i]) {
					return nil, ErrNotOwner
				}
			}
		}
		next, moved, err := workflow.ApplyAll(items, ids, p.Role, action, remarks)
		if err != nil {
			return nil, err
		}
		now := e.timestamp()
		stamped := make(map[string]bool, len(moved))
		for _, m := range moved {
			stamped[m.ID] = true
		}
		for i := range next {
			if !stamped[next[i].ID] {
				continue
			}
			next[i].UpdatedAt = now
			if action == workflow.ActionForward || action == workflow.ActionResubmit {
				next[i].ForwardedAt = &now
			}
			changed = append(changed, next[i])
		}
		return next, nil
	})
	if err != nil {
		log.WithError(err).Warn("action rejected")
		return nil, err
	}
	evtType := eventFor(action)
	for _, it := range changed {
		payload := events.EventPayload{"status": it.Status, "section": it.ForwardedTo.Section}
		if action == workflow.ActionReject {
			payload["remarks"] = it.Remarks
		}
		if it.Status == domain.StatusCDMAApproved {
			payload["final"] = true
		}
		e.record(ctx, evtType, it.ID, p, payload)
		log.WithField("work_id", it.ID).Info("work updated")
	}
	return changed, nil
}

func (e Engine) Approve(ctx context.Context, p domain.Principal, ids ...string) ([]domain.WorkItem, error) {
	return e.Act(ctx, p, workflow.ActionApprove, ids, "")
}

func (e Engine) Reject(ctx context.Context, p domain.Principal, remarks string, ids ...string) ([]domain.WorkItem, error) {
	return e.Act(ctx, p, workflow.ActionReject, ids, remarks)
}

func (e Engine) ForwardWorks(ctx context.Context, p domain.Principal, ids ...string) ([]domain.WorkItem, error) {
	return e.Act(ctx, p, workflow.ActionForward, ids, "")
}

func eventFor(a workflow.Action) string {
	switch a {
	case workflow.ActionApprove:
		return events.WorkApproved
	case workflow.ActionReject:
		return events.WorkRejected
	case workflow.ActionResubmit:
		return events.WorkResubmitted
	default:
		return events.WorkForwarded
	}
}

// ListFilters narrows GET /works style listings.
type ListFilters struct {
	Status   string
	Section  string
	CRNumber string
	Sector   string
}

// List returns the shared works visible to the caller that match f.
func (e Engine) List(p domain.Principal, f ListFilters) ([]domain.WorkItem, error) {
	if err := auth.RequireRole(p, workflow.Chain...); err != nil {
		return nil, err
	}
	base := e.predicate(p, ViewAll)
	return e.Store.Snapshot().Filter(func(w domain.WorkItem) bool {
		if !base(w) {
			return false
		}
		if f.Status != "" && string(w.Status) != f.Status {
			return false
		}
		if f.Section != "" && !strings.EqualFold(w.ForwardedTo.Section, f.Section) {
			return false
		}
		if f.CRNumber != "" && w.CRLabel() != f.CRNumber {
			return false
		}
		if f.Sector != "" && w.Sector != f.Sector {
			return false
		}
		return true
	}), nil
}

// Stats counts the shared works by status.
func (e Engine) Stats() map[string]int {
	res := map[string]int{}
	for _, it := range e.Store.Snapshot().Items {
		key := string(it.Status)
		if key == "" {
			key = "draft"
		}
		res[key]++
	}
	return res
}

// ClearWorks empties the shared store and both storage backends. Only the
// CDMA may do this.
func (e Engine) ClearWorks(ctx context.Context, p domain.Principal) (int, error) {
	if err := auth.RequireRole(p, domain.RoleCDMA); err != nil {
		return 0, err
	}
	n := len(e.Store.Snapshot().Items)
	if err := e.Store.Reset(ctx); err != nil {
		return 0, err
	}
	e.record(ctx, events.StorageCleared, "", p, events.EventPayload{"works": n})
	e.Log.WithFields(logrus.Fields{"role": p.Role, "works": n}).Warn("shared works cleared")
	return n, nil
}
