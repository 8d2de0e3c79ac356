package server

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/attachment"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/budget"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/crcycle"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine"
)

// Request payloads

// AttachmentUpload is either a file body (base64 in JSON) or an already
// encoded data URI or URL.
type AttachmentUpload struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Content  []byte `json:"content,omitempty"`
	URI      string `json:"uri,omitempty"`
}

func (u *AttachmentUpload) toDomain() domain.Attachment {
	if u == nil {
		return domain.NoAttachment()
	}
	if uri := strings.TrimSpace(u.URI); uri != "" {
		return domain.EncodedAttachment(uri)
	}
	if u.Name == "" && len(u.Content) == 0 {
		return domain.NoAttachment()
	}
	return domain.RawAttachment(u.Name, u.MimeType, u.Content)
}

type SubmitWorkRequest struct {
	Sector            string            `json:"sector"`
	ProposalName      string            `json:"proposalName"`
	Area              string            `json:"area,omitempty"`
	Locality          string            `json:"locality"`
	WardNo            string            `json:"wardNo"`
	LatLong           string            `json:"latlong,omitempty"`
	Cost              string            `json:"cost" example:"250000.00"`
	Priority          int               `json:"priority" minimum:"1"`
	WorkImage         *AttachmentUpload `json:"workImage,omitempty"`
	DetailedReport    *AttachmentUpload `json:"detailedReport,omitempty"`
	CommitteeReport   *AttachmentUpload `json:"committeeReport,omitempty"`
	CouncilResolution *AttachmentUpload `json:"councilResolution,omitempty"`
}

func (r SubmitWorkRequest) toDraft() (engine.Draft, error) {
	cost, err := parseCost(r.Cost)
	if err != nil {
		return engine.Draft{}, err
	}
	return engine.Draft{
		Sector:            strings.TrimSpace(r.Sector),
		ProposalName:      r.ProposalName,
		Area:              r.Area,
		Locality:          r.Locality,
		WardNo:            r.WardNo,
		LatLong:           r.LatLong,
		Cost:              cost,
		Priority:          r.Priority,
		WorkImage:         r.WorkImage.toDomain(),
		DetailedReport:    r.DetailedReport.toDomain(),
		CommitteeReport:   r.CommitteeReport.toDomain(),
		CouncilResolution: r.CouncilResolution.toDomain(),
	}, nil
}

func parseCost(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, &engine.ValidationError{Field: "cost", Message: "is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &engine.ValidationError{Field: "cost", Message: "must be a number"}
	}
	return d, nil
}

type ResubmitRequest struct {
	ProposalName      *string           `json:"proposalName,omitempty"`
	Area              *string           `json:"area,omitempty"`
	Locality          *string           `json:"locality,omitempty"`
	WardNo            *string           `json:"wardNo,omitempty"`
	LatLong           *string           `json:"latlong,omitempty"`
	Note              string            `json:"note,omitempty"`
	WorkImage         *AttachmentUpload `json:"workImage,omitempty"`
	DetailedReport    *AttachmentUpload `json:"detailedReport,omitempty"`
	CommitteeReport   *AttachmentUpload `json:"committeeReport,omitempty"`
	CouncilResolution *AttachmentUpload `json:"councilResolution,omitempty"`
}

func (r ResubmitRequest) toCorrection() engine.Correction {
	return engine.Correction{
		ProposalName:      r.ProposalName,
		Area:              r.Area,
		Locality:          r.Locality,
		WardNo:            r.WardNo,
		LatLong:           r.LatLong,
		Note:              r.Note,
		WorkImage:         r.WorkImage.toDomain(),
		DetailedReport:    r.DetailedReport.toDomain(),
		CommitteeReport:   r.CommitteeReport.toDomain(),
		CouncilResolution: r.CouncilResolution.toDomain(),
	}
}

type CycleRequest struct {
	TargetCount float64 `json:"targetCount"`
	CRNumber    string  `json:"crNumber,omitempty"`
	CRDate      string  `json:"crDate,omitempty"`
}

// target maps fractional counts to zero, which discards the cycle.
func (r CycleRequest) target() int {
	if r.TargetCount != math.Trunc(r.TargetCount) || r.TargetCount > math.MaxInt32 {
		return 0
	}
	return int(r.TargetCount)
}

type ActionRequest struct {
	Action  string   `json:"action" enum:"approve,reject,forward,resubmit"`
	IDs     []string `json:"ids" minItems:"1"`
	Remarks string   `json:"remarks,omitempty"`
}

type DevLoginRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role" example:"Commissioner"`
}

// Response payloads

type ForwardedToResponse struct {
	Department string `json:"department,omitempty"`
	Section    string `json:"section,omitempty"`
}

type WorkResponse struct {
	ID                string              `json:"id"`
	DraftID           string              `json:"draftId,omitempty"`
	Sector            string              `json:"sector"`
	ProposalName      string              `json:"proposalName"`
	Area              string              `json:"area,omitempty"`
	Locality          string              `json:"locality,omitempty"`
	WardNo            string              `json:"wardNo,omitempty"`
	LatLong           string              `json:"latlong,omitempty"`
	Cost              string              `json:"cost"`
	CostDisplay       string              `json:"costDisplay"`
	Priority          int                 `json:"priority"`
	CRNumber          string              `json:"crNumber,omitempty"`
	CRDate            string              `json:"crDate,omitempty"`
	WorkImage         string              `json:"workImage,omitempty"`
	DetailedReport    string              `json:"detailedReport,omitempty"`
	CommitteeReport   string              `json:"committeeReport,omitempty"`
	CouncilResolution string              `json:"councilResolution,omitempty"`
	Status            string              `json:"status"`
	ForwardedTo       ForwardedToResponse `json:"forwardedTo"`
	Remarks           string              `json:"remarks,omitempty"`
	RejectedBy        string              `json:"rejectedBy,omitempty"`
	SubmittedBy       string              `json:"submittedBy,omitempty"`
	CreatedAt         string              `json:"createdAt" format:"date-time"`
	UpdatedAt         string              `json:"updatedAt" format:"date-time"`
	ForwardedAt       string              `json:"forwardedAt,omitempty" format:"date-time"`
	Final             bool                `json:"final,omitempty"`
	Actions           []string            `json:"actions,omitempty"`
}

func workResponse(w domain.WorkItem) WorkResponse {
	return WorkResponse{
		ID:                w.ID,
		DraftID:           w.DraftID,
		Sector:            w.Sector,
		ProposalName:      w.ProposalName,
		Area:              w.Area,
		Locality:          w.Locality,
		WardNo:            w.WardNo,
		LatLong:           w.LatLong,
		Cost:              budget.PlainAmount(w.Cost),
		CostDisplay:       budget.FormatRupees(w.Cost),
		Priority:          w.Priority,
		CRNumber:          w.CRLabel(),
		CRDate:            stringOrEmpty(w.CRDate),
		WorkImage:         attachment.DisplayURL(w.WorkImage),
		DetailedReport:    attachment.DisplayURL(w.DetailedReport),
		CommitteeReport:   attachment.DisplayURL(w.CommitteeReport),
		CouncilResolution: attachment.DisplayURL(w.CouncilResolution),
		Status:            string(w.Status),
		ForwardedTo:       ForwardedToResponse{Department: w.ForwardedTo.Department, Section: w.ForwardedTo.Section},
		Remarks:           w.Remarks,
		RejectedBy:        w.RejectedBy,
		SubmittedBy:       w.SubmittedBy,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
		ForwardedAt:       stringOrEmpty(w.ForwardedAt),
		Final:             w.Status == domain.StatusCDMAApproved,
	}
}

func mapWorks(items []domain.WorkItem) []WorkResponse {
	out := make([]WorkResponse, 0, len(items))
	for _, it := range items {
		out = append(out, workResponse(it))
	}
	return out
}

type WorkListResponse struct {
	Items []WorkResponse `json:"items"`
	Total string         `json:"total"`
}

func workList(items []domain.WorkItem) WorkListResponse {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Cost)
	}
	return WorkListResponse{Items: mapWorks(items), Total: budget.FormatRupees(total)}
}

type DashboardResponse struct {
	View   string         `json:"view"`
	Items  []WorkResponse `json:"items"`
	Counts map[string]int `json:"counts"`
}

type CRGroupResponse struct {
	CRNumber string         `json:"crNumber"`
	CRDate   string         `json:"crDate,omitempty"`
	Total    string         `json:"total"`
	Items    []WorkResponse `json:"items"`
}

func crGroups(groups []engine.CRGroup) []CRGroupResponse {
	out := make([]CRGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, CRGroupResponse{
			CRNumber: g.CRNumber,
			CRDate:   g.CRDate,
			Total:    budget.FormatRupees(g.Total),
			Items:    mapWorks(g.Items),
		})
	}
	return out
}

type CycleResponse struct {
	Active         bool   `json:"active"`
	Changed        bool   `json:"changed"`
	TargetCount    int    `json:"targetCount"`
	SubmittedCount int    `json:"submittedCount"`
	CRNumber       string `json:"crNumber,omitempty"`
	CRDate         string `json:"crDate,omitempty"`
	Locked         bool   `json:"locked"`
}

func cycleResponse(s engine.CycleState) CycleResponse {
	return CycleResponse{
		Active:         s.Active,
		Changed:        s.Changed,
		TargetCount:    s.Cycle.TargetCount,
		SubmittedCount: s.Cycle.SubmittedCount,
		CRNumber:       s.Cycle.CRNumber,
		CRDate:         s.Cycle.CRDate,
		Locked:         s.Cycle.Locked(),
	}
}

type BudgetResponse struct {
	Ceiling     string `json:"ceiling"`
	Committed   string `json:"committed"`
	Remaining   string `json:"remaining"`
	CRNumber    string `json:"crNumber,omitempty"`
	CRRemaining string `json:"crRemaining,omitempty"`
}

func budgetResponse(v engine.BudgetView) BudgetResponse {
	res := BudgetResponse{
		Ceiling:   budget.FormatRupees(v.Ceiling),
		Committed: budget.FormatRupees(v.Committed),
		Remaining: budget.FormatRupees(v.Remaining),
		CRNumber:  v.CRNumber,
	}
	if v.CRRemaining != nil {
		res.CRRemaining = budget.FormatRupees(*v.CRRemaining)
	}
	return res
}

type EventResponse struct {
	ID       int64          `json:"id"`
	TS       string         `json:"ts" format:"date-time"`
	Type     string         `json:"type"`
	EntityID string         `json:"entityId,omitempty"`
	ActorID  string         `json:"actorId"`
	Role     string         `json:"role,omitempty"`
	Payload  map[string]any `json:"payload"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:       evt.ID,
		TS:       evt.TS,
		Type:     evt.Type,
		EntityID: evt.EntityID,
		ActorID:  evt.ActorID,
		Role:     evt.Role,
		Payload:  payload,
	}
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

type MeResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Section    string `json:"section"`
	Department string `json:"department"`
}

type DevLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt" format:"date-time"`
}

// ShortfallDetails is attached to CR gate errors.
func shortfallDetails(e *crcycle.ShortfallError) map[string]any {
	return map[string]any{"crNumber": e.CRNumber, "target": e.Target, "submitted": e.Submitted, "missing": e.Missing()}
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
