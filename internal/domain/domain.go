package domain

import (
	"github.com/shopspring/decimal"
)

type Status string

// Wire values for WorkItem.Status. They are persisted and shown verbatim.
const (
	StatusDraft                Status = ""
	StatusPendingReview        Status = "Pending Review"
	StatusCommissionerApproved Status = "Commissioner Approved"
	StatusCommissionerRejected Status = "Commissioner Rejected"
	StatusEEPHApproved         Status = "EEPH Approved"
	StatusEEPHRejected         Status = "EEPH Rejected"
	StatusForwardedToSEPH      Status = "Forwarded to SEPH"
	StatusSEPHApproved         Status = "SEPH Approved"
	StatusSEPHRejected         Status = "SEPH Rejected"
	StatusForwardedToENCPH     Status = "Forwarded to ENCPH"
	StatusENCPHApproved        Status = "ENCPH Approved"
	StatusENCPHRejected        Status = "ENCPH Rejected"
	StatusForwardedToCDMA      Status = "Forwarded to CDMA"
	StatusCDMAApproved         Status = "CDMA Approved"
	StatusRejected             Status = "Rejected"
)

// Role is the session role carried in the bearer token.
type Role string

const (
	RoleEngineer     Role = "engineer"
	RoleCommissioner Role = "Commissioner"
	RoleEEPH         Role = "eeph"
	RoleSEPH         Role = "seph"
	RoleENCPH        Role = "encph"
	RoleCDMA         Role = "cdma"
)

type ForwardedTo struct {
	Department string `json:"department,omitempty"`
	Section    string `json:"section,omitempty"`
}

type WorkItem struct {
	ID                string          `json:"id"`
	DraftID           string          `json:"draftId,omitempty"`
	Sector            string          `json:"sector"`
	ProposalName      string          `json:"proposalName"`
	Area              string          `json:"area,omitempty"`
	Locality          string          `json:"locality,omitempty"`
	WardNo            string          `json:"wardNo,omitempty"`
	LatLong           string          `json:"latlong,omitempty"`
	Cost              decimal.Decimal `json:"cost"`
	Priority          int             `json:"priority"`
	CRNumber          *string         `json:"crNumber"`
	CRDate            *string         `json:"crDate"`
	WorkImage         Attachment      `json:"workImage"`
	DetailedReport    Attachment      `json:"detailedReport"`
	CommitteeReport   Attachment      `json:"committeeReport"`
	CouncilResolution Attachment      `json:"councilResolution"`
	Status            Status          `json:"status"`
	ForwardedTo       ForwardedTo     `json:"forwardedTo"`
	Remarks           string          `json:"remarks,omitempty"`
	RejectedBy        string          `json:"rejectedBy,omitempty"`
	SubmittedBy       string          `json:"submittedBy,omitempty"`
	CreatedAt         string          `json:"createdAt" format:"date-time"`
	UpdatedAt         string          `json:"updatedAt" format:"date-time"`
	ForwardedAt       *string         `json:"forwardedAt,omitempty" format:"date-time"`
}

// Attachments returns pointers to the four attachment fields in a fixed order.
func (w *WorkItem) Attachments() []NamedAttachment {
	return []NamedAttachment{
		{Field: "workImage", Attachment: &w.WorkImage},
		{Field: "detailedReport", Attachment: &w.DetailedReport},
		{Field: "committeeReport", Attachment: &w.CommitteeReport},
		{Field: "councilResolution", Attachment: &w.CouncilResolution},
	}
}

type NamedAttachment struct {
	Field      string
	Attachment *Attachment
}

// CRLabel returns the CR number or "" when the item was created outside a cycle.
func (w WorkItem) CRLabel() string {
	if w.CRNumber == nil {
		return ""
	}
	return *w.CRNumber
}

type Event struct {
	ID       int64  `json:"id" db:"id"`
	TS       string `json:"ts" db:"ts" format:"date-time"`
	Type     string `json:"type" db:"type"`
	EntityID string `json:"entity_id,omitempty" db:"entity_id"`
	ActorID  string `json:"actor_id" db:"actor_id"`
	Role     string `json:"role,omitempty" db:"role"`
	Payload  string `json:"payload_json" db:"payload_json"`
}

// Principal is the authenticated caller as carried by the bearer token.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
