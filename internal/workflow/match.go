package workflow

import (
	"fmt"
	"strings"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
)

const (
	MatchExact  = "exact"
	MatchLegacy = "legacy"
)

// Matcher decides whether an item belongs in a role's pending queue.
type Matcher func(item domain.WorkItem, role domain.Role) bool

func MatcherFor(mode string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", MatchExact:
		return AddressedTo, nil
	case MatchLegacy:
		return LegacyAddressedTo, nil
	}
	return nil, fmt.Errorf("unknown role matching mode %q", mode)
}

// AddressedTo reports whether item waits on role. Reviewers see what they can
// approve; the originator sees what was sent back for correction.
func AddressedTo(item domain.WorkItem, role domain.Role) bool {
	if role == domain.RoleEngineer {
		return CanApply(item, role, ActionResubmit)
	}
	return CanApply(item, role, ActionApprove)
}

// LegacyAddressedTo matches role names inside the status text and section by
// case-insensitive substring. It can list items a role is not allowed to act on.
func LegacyAddressedTo(item domain.WorkItem, role domain.Role) bool {
	tag := strings.ToLower(Tag(role))
	if tag == "" {
		return false
	}
	status := strings.ToLower(string(item.Status))
	section := strings.ToLower(item.ForwardedTo.Section)
	if strings.Contains(status, tag+" approved") || strings.Contains(status, tag+" rejected") {
		return false
	}
	if next, ok := Next(role); ok {
		nt := strings.ToLower(Tag(next))
		if strings.Contains(status, nt) || strings.Contains(section, nt) {
			return false
		}
	}
	return strings.Contains(status, tag) || strings.Contains(section, tag)
}

// ApprovedBy reports items approved by role and still on its desk.
func ApprovedBy(item domain.WorkItem, role domain.Role) bool {
	s := ApprovedStatus(role)
	return s != domain.StatusDraft && item.Status == s && Holder(item) == Tag(role)
}

// ForwardedBeyond reports items that moved past role and were not rejected.
func ForwardedBeyond(item domain.WorkItem, role domain.Role) bool {
	i := Index(role)
	return i >= 0 && !IsRejected(item.Status) && Stage(item) > i
}

func RejectedBy(item domain.WorkItem, role domain.Role) bool {
	return IsRejected(item.Status) && item.RejectedBy == Tag(role)
}

// SentBack reports items a later role rejected after role had processed them.
func SentBack(item domain.WorkItem, role domain.Role) bool {
	if !IsRejected(item.Status) {
		return false
	}
	by, ok := RoleByTag(item.RejectedBy)
	if !ok {
		return false
	}
	return Index(by) > Index(role)
}
