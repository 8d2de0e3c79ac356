package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/budget"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/crcycle"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine/auth"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/events"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/session"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/workflow"
)

// Draft is a work as entered by the engineer.
type Draft struct {
	Sector       string          `json:"sector" validate:"required"`
	ProposalName string          `json:"proposalName" validate:"required,max=500"`
	Area         string          `json:"area" validate:"max=200"`
	Locality     string          `json:"locality" validate:"required,max=200"`
	WardNo       string          `json:"wardNo" validate:"required,max=50"`
	LatLong      string          `json:"latlong" validate:"max=1000"`
	Cost         decimal.Decimal `json:"cost"`
	Priority     int             `json:"priority" validate:"gte=1"`

	WorkImage         domain.Attachment `json:"-"`
	DetailedReport    domain.Attachment `json:"-"`
	CommitteeReport   domain.Attachment `json:"-"`
	CouncilResolution domain.Attachment `json:"-"`
}

func (e Engine) validateDraft(d Draft) error {
	if err := e.validate.Struct(d); err != nil {
		return fromValidator(err)
	}
	if !e.Config.HasSector(d.Sector) {
		return invalid("sector", "unknown sector %q", d.Sector)
	}
	if err := budget.ValidateAmount(d.Cost); err != nil {
		return invalid("cost", "%s", err.Error())
	}
	return nil
}

// CycleState is the originator's CR cycle as shown on the dashboard.
type CycleState struct {
	Active  bool          `json:"active"`
	Changed bool          `json:"changed"`
	Cycle   crcycle.Cycle `json:"cycle"`
}

// OpenCycle creates or updates the originator's CR cycle. A non-positive
// target discards it. A cycle with submissions is left as is and Changed is
// false.
func (e Engine) OpenCycle(ctx context.Context, p domain.Principal, target int, crNumber, crDate string) (CycleState, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return CycleState{}, err
	}
	var res CycleState
	err := e.Sessions.Get(p.ID).Do(func(st *session.State) error {
		if err := validateCycle(target, crNumber, crDate); err != nil {
			return err
		}
		res.Cycle, res.Changed = st.Cycle.OpenOrUpdate(target, crNumber, crDate)
		_, res.Active = st.Cycle.Active()
		return nil
	})
	if err != nil {
		return CycleState{}, err
	}
	switch {
	case !res.Active:
		e.record(ctx, events.CycleDiscarded, "", p, nil)
	case res.Changed:
		e.record(ctx, events.CycleOpened, res.Cycle.CRNumber, p, events.EventPayload{"target": res.Cycle.TargetCount, "cr_date": res.Cycle.CRDate})
	}
	return res, nil
}

func validateCycle(target int, crNumber, crDate string) error {
	if target <= 0 {
		return nil
	}
	if strings.TrimSpace(crNumber) == "" {
		return invalid("crNumber", "is required")
	}
	if strings.TrimSpace(crDate) == "" {
		return invalid("crDate", "is required")
	}
	return nil
}

func (e Engine) Cycle(p domain.Principal) (CycleState, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return CycleState{}, err
	}
	c, ok := e.Sessions.Get(p.ID).Cycle()
	return CycleState{Active: ok, Cycle: c}, nil
}

func (e Engine) DiscardCycle(ctx context.Context, p domain.Principal) error {
	_, err := e.OpenCycle(ctx, p, 0, "", "")
	return err
}

// BudgetView is the ledger of the works an originator still holds.
type BudgetView struct {
	budget.Summary
	CRNumber    string           `json:"crNumber,omitempty"`
	CRRemaining *decimal.Decimal `json:"crRemaining,omitempty"`
}

func (e Engine) Budget(p domain.Principal) (BudgetView, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return BudgetView{}, err
	}
	sess := e.Sessions.Get(p.ID)
	local := sess.Local()
	view := BudgetView{Summary: budget.Summarize(e.ceiling(), local)}
	if c, ok := sess.Cycle(); ok {
		rem := budget.RemainingForCR(e.ceiling(), local, c.CRNumber)
		view.CRNumber = c.CRNumber
		view.CRRemaining = &rem
	}
	return view, nil
}

// Submit validates a draft against the ledger and the active CR cycle and
// holds it locally until the batch is forwarded.
func (e Engine) Submit(ctx context.Context, p domain.Principal, d Draft) (domain.WorkItem, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return domain.WorkItem{}, err
	}
	if err := e.validateDraft(d); err != nil {
		return domain.WorkItem{}, err
	}
	var (
		item   domain.WorkItem
		cycle  crcycle.Cycle
		closed bool
	)
	err := e.Sessions.Get(p.ID).Do(func(st *session.State) error {
		active, ok := st.Cycle.Active()
		crNumber := ""
		if ok {
			crNumber = active.CRNumber
		}
		if err := budget.Check(e.ceiling(), st.Local, crNumber, d.Cost); err != nil {
			return err
		}
		now := e.timestamp()
		item = domain.WorkItem{
			ID:                uuid.NewString(),
			Sector:            d.Sector,
			ProposalName:      strings.TrimSpace(d.ProposalName),
			Area:              d.Area,
			Locality:          d.Locality,
			WardNo:            d.WardNo,
			LatLong:           d.LatLong,
			Cost:              d.Cost,
			Priority:          d.Priority,
			WorkImage:         d.WorkImage,
			DetailedReport:    d.DetailedReport,
			CommitteeReport:   d.CommitteeReport,
			CouncilResolution: d.CouncilResolution,
			Status:            domain.StatusDraft,
			SubmittedBy:       p.Username,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if ok {
			number, date := active.CRNumber, active.CRDate
			item.CRNumber = &number
			item.CRDate = &date
		}
		st.Local = append(st.Local, item)
		if ok {
			cycle, closed, _ = st.Cycle.RecordSubmission()
		}
		return nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}
	e.record(ctx, events.WorkSubmitted, item.ID, p, events.EventPayload{"cost": item.Cost.String(), "cr_number": item.CRLabel(), "sector": item.Sector})
	if closed {
		e.record(ctx, events.CycleClosed, cycle.CRNumber, p, events.EventPayload{"submitted": cycle.SubmittedCount})
	}
	return item, nil
}

// Local lists the works the originator holds, in submission order.
func (e Engine) Local(p domain.Principal) ([]domain.WorkItem, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return nil, err
	}
	return e.Sessions.Get(p.ID).Local(), nil
}

// Discard drops a locally held work and releases its cost.
func (e Engine) Discard(ctx context.Context, p domain.Principal, id string) error {
	if err := auth.RequireOriginator(p); err != nil {
		return err
	}
	err := e.Sessions.Get(p.ID).Do(func(st *session.State) error {
		for i, it := range st.Local {
			if it.ID == id {
				st.Local = append(st.Local[:i], st.Local[i+1:]...)
				return nil
			}
		}
		return errLocalNotFound(id)
	})
	if err != nil {
		return err
	}
	e.record(ctx, events.WorkDiscarded, id, p, nil)
	return nil
}

// Forward promotes every locally held work into the shared store, addressed
// to the Commissioner. Nothing is promoted unless every attachment encodes.
func (e Engine) Forward(ctx context.Context, p domain.Principal) ([]domain.WorkItem, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return nil, err
	}
	var promoted []domain.WorkItem
	err := e.Sessions.Get(p.ID).Do(func(st *session.State) error {
		if len(st.Local) == 0 {
			return invalid("works", "no works to forward")
		}
		if err := st.Cycle.Gate(len(st.Local)); err != nil {
			return err
		}
		encoded, err := e.Encoder.EncodeItems(ctx, st.Local)
		if err != nil {
			return err
		}
		now := e.timestamp()
		out := make([]domain.WorkItem, 0, len(encoded))
		for _, it := range encoded {
			next, err := workflow.Apply(it, domain.RoleEngineer, workflow.ActionForward, "")
			if err != nil {
				return err
			}
			id, err := e.nextID()
			if err != nil {
				return err
			}
			next.DraftID = it.ID
			next.ID = id
			next.UpdatedAt = now
			next.ForwardedAt = &now
			out = append(out, next)
		}
		if _, err := e.Store.Apply(ctx, func(items []domain.WorkItem) ([]domain.WorkItem, error) {
			return append(items, out...), nil
		}); err != nil {
			return err
		}
		st.Local = nil
		promoted = out
		return nil
	})
	if err != nil {
		e.Log.WithError(err).WithFields(logrus.Fields{"role": p.Role, "action": workflow.ActionForward}).Warn("forward rejected")
		return nil, err
	}
	for _, it := range promoted {
		e.record(ctx, events.WorkForwarded, it.ID, p, events.EventPayload{"draft_id": it.DraftID, "status": it.Status, "to": it.ForwardedTo.Section})
	}
	e.Log.WithFields(logrus.Fields{"role": p.Role, "count": len(promoted)}).Info("works forwarded")
	return promoted, nil
}

// Correction carries the fields an engineer may change before resubmitting.
// Nil fields and None attachments keep the current value.
type Correction struct {
	ProposalName *string
	Area         *string
	Locality     *string
	WardNo       *string
	LatLong      *string
	Note         string

	WorkImage         domain.Attachment
	DetailedReport    domain.Attachment
	CommitteeReport   domain.Attachment
	CouncilResolution domain.Attachment
}

func (c Correction) apply(w *domain.WorkItem) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&w.ProposalName, c.ProposalName)
	set(&w.Area, c.Area)
	set(&w.Locality, c.Locality)
	set(&w.WardNo, c.WardNo)
	set(&w.LatLong, c.LatLong)
	repl := []domain.Attachment{c.WorkImage, c.DetailedReport, c.CommitteeReport, c.CouncilResolution}
	for i, na := range w.Attachments() {
		if !repl[i].IsNone() {
			*na.Attachment = repl[i]
		}
	}
}

// Resubmit sends a rejected work back to the Commissioner after applying
// corrections. The rejection metadata is cleared.
func (e Engine) Resubmit(ctx context.Context, p domain.Principal, id string, c Correction) (domain.WorkItem, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return domain.WorkItem{}, err
	}
	if c.ProposalName != nil && strings.TrimSpace(*c.ProposalName) == "" {
		return domain.WorkItem{}, invalid("proposalName", "is required")
	}
	var updated domain.WorkItem
	var previous domain.WorkItem
	_, err := e.Store.Apply(ctx, func(items []domain.WorkItem) ([]domain.WorkItem, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, errNotFound(id)
		}
		previous = items[i]
		if !e.owns(p, previous) {
			return nil, ErrNotOwner
		}
		next, err := workflow.Apply(previous, domain.RoleEngineer, workflow.ActionResubmit, c.Note)
		if err != nil {
			return nil, err
		}
		c.apply(&next)
		encoded, err := e.Encoder.EncodeItems(ctx, []domain.WorkItem{next})
		if err != nil {
			return nil, err
		}
		next = encoded[0]
		now := e.timestamp()
		next.UpdatedAt = now
		next.ForwardedAt = &now
		items[i] = next
		updated = next
		return items, nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}
	e.record(ctx, events.WorkResubmitted, id, p, events.EventPayload{"previous_status": previous.Status, "rejected_by": previous.RejectedBy})
	return updated, nil
}

// SentBack lists the originator's works that were rejected and await correction.
func (e Engine) SentBack(p domain.Principal) ([]domain.WorkItem, error) {
	if err := auth.RequireOriginator(p); err != nil {
		return nil, err
	}
	return e.Store.Snapshot().Filter(func(w domain.WorkItem) bool {
		return e.owns(p, w) && workflow.AddressedTo(w, domain.RoleEngineer)
	}), nil
}

// owns reports whether an engineer submitted w. Works without a recorded
// submitter are shared by every engineer.
func (e Engine) owns(p domain.Principal, w domain.WorkItem) bool {
	return w.SubmittedBy == "" || w.SubmittedBy == p.Username
}

func indexOf(items []domain.WorkItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// EndSession forgets the caller's local drafts and CR cycle.
func (e Engine) EndSession(ctx context.Context, p domain.Principal) {
	e.Sessions.Drop(p.ID)
	e.record(ctx, events.SessionEnded, "", p, nil)
}

// ActiveSessions counts originator sessions that have not expired.
func (e Engine) ActiveSessions() int {
	return e.Sessions.Len()
}
