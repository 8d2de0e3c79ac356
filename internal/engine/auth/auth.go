package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/workflow"
)

var ErrUnauthenticated = errors.New("authentication required")

// ForbiddenError indicates the caller's role may not use an operation.
type ForbiddenError struct {
	Role     domain.Role
	Required []domain.Role
}

func (e ForbiddenError) Error() string {
	names := make([]string, len(e.Required))
	for i, r := range e.Required {
		names[i] = string(r)
	}
	return fmt.Sprintf("role %s may not do this; requires %s", e.Role, strings.Join(names, " or "))
}

// RequireRole passes when p holds one of roles.
func RequireRole(p domain.Principal, roles ...domain.Role) error {
	if p.ID == "" {
		return ErrUnauthenticated
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return ForbiddenError{Role: p.Role, Required: roles}
}

// Reviewers are the roles with a reviewer dashboard.
func Reviewers() []domain.Role {
	return workflow.Chain[1:]
}

func RequireReviewer(p domain.Principal) error {
	return RequireRole(p, Reviewers()...)
}

func RequireOriginator(p domain.Principal) error {
	return RequireRole(p, domain.RoleEngineer)
}

// Principal builds a principal from token claims, normalizing the role.
func Principal(id, username, role string) (domain.Principal, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	r, err := workflow.ParseRole(role)
	if err != nil {
		return domain.Principal{}, err
	}
	if username == "" {
		username = id
	}
	return domain.Principal{ID: id, Username: username, Role: r}, nil
}
