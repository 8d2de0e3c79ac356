package workflow

import (
	"fmt"
	"strings"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
)

// Tags name a role inside work items (forwardedTo.section, rejectedBy).
const (
	TagEngineer     = "Engineer"
	TagCommissioner = "Commissioner"
	TagEEPH         = "EEPH"
	TagSEPH         = "SEPH"
	TagENCPH        = "ENCPH"
	TagCDMA         = "CDMA"
)

const (
	departmentMunicipality = "Municipality"
	departmentPublicHealth = "Public Health Engineering"
	departmentCDMA         = "Commissioner & Director of Municipal Administration"
)

// Chain is the approval order, originator first.
var Chain = []domain.Role{
	domain.RoleEngineer,
	domain.RoleCommissioner,
	domain.RoleEEPH,
	domain.RoleSEPH,
	domain.RoleENCPH,
	domain.RoleCDMA,
}

var tags = map[domain.Role]string{
	domain.RoleEngineer:     TagEngineer,
	domain.RoleCommissioner: TagCommissioner,
	domain.RoleEEPH:         TagEEPH,
	domain.RoleSEPH:         TagSEPH,
	domain.RoleENCPH:        TagENCPH,
	domain.RoleCDMA:         TagCDMA,
}

var departments = map[string]string{
	TagEngineer:     departmentMunicipality,
	TagCommissioner: departmentMunicipality,
	TagEEPH:         departmentPublicHealth,
	TagSEPH:         departmentPublicHealth,
	TagENCPH:        departmentPublicHealth,
	TagCDMA:         departmentCDMA,
}

// ParseRole maps a session role to the closed role set. Matching ignores case
// and the canonical wire value is returned.
func ParseRole(s string) (domain.Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Chain {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func Tag(r domain.Role) string {
	return tags[r]
}

func RoleByTag(tag string) (domain.Role, bool) {
	for r, t := range tags {
		if t == tag {
			return r, true
		}
	}
	return "", false
}

// Index returns the position of r in Chain, or -1.
func Index(r domain.Role) int {
	for i, c := range Chain {
		if c == r {
			return i
		}
	}
	return -1
}

func Next(r domain.Role) (domain.Role, bool) {
	i := Index(r)
	if i < 0 || i+1 >= len(Chain) {
		return "", false
	}
	return Chain[i+1], true
}

func Department(tag string) string {
	return departments[tag]
}
