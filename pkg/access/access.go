// Package access holds the role assignments that gate privileged operations.
package access

import (
	"fmt"
	"sync"

	"github.com/amirasaad/accrual/pkg/domain"
)

// Identity is the authenticated name of a caller.
type Identity string

// Role is a privilege a single identity holds.
type Role string

const (
	RoleAdministrator      Role = "administrator"
	RoleAutomationAgent    Role = "automation_agent"
	RoleFundingRelay       Role = "funding_relay"
	RoleExternalAuthorizer Role = "external_authorizer"
)

var (
	// ErrForbidden is returned when the caller does not hold the role an operation requires.
	ErrForbidden = fmt.Errorf("%w: caller does not hold the required role", domain.ErrAuthorization)
	// ErrUnknownRole is returned when assigning a role that is not reassignable.
	ErrUnknownRole = fmt.Errorf("%w: unknown or fixed role", domain.ErrValidation)
	// ErrEmptyIdentity is returned when assigning a role to an empty identity.
	ErrEmptyIdentity = fmt.Errorf("%w: identity must not be empty", domain.ErrValidation)
)

// Roles maps each role to the identity that holds it.
type Roles struct {
	Administrator      Identity
	AutomationAgent    Identity
	FundingRelay       Identity
	ExternalAuthorizer Identity
}

func (r Roles) holder(role Role) (Identity, bool) {
	switch role {
	case RoleAdministrator:
		return r.Administrator, true
	case RoleAutomationAgent:
		return r.AutomationAgent, true
	case RoleFundingRelay:
		return r.FundingRelay, true
	case RoleExternalAuthorizer:
		return r.ExternalAuthorizer, true
	}
	return "", false
}

// Policy is the live, concurrency-safe role table.
type Policy struct {
	mu    sync.RWMutex
	roles Roles
}

// NewPolicy returns a Policy seeded with roles.
func NewPolicy(roles Roles) *Policy {
	return &Policy{roles: roles}
}

// Roles returns a snapshot of the current assignments.
func (p *Policy) Roles() Roles {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.roles
}

// Has reports whether caller holds role.
func (p *Policy) Has(caller Identity, role Role) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	holder, ok := p.roles.holder(role)
	return ok && caller != "" && caller == holder
}

// Require returns ErrForbidden unless caller holds role.
func (p *Policy) Require(caller Identity, role Role) error {
	if !p.Has(caller, role) {
		return fmt.Errorf("%w: %q is not %s", ErrForbidden, caller, role)
	}
	return nil
}

// Assign gives role to id. The administrator and the external authorizer
// are fixed at startup.
func (p *Policy) Assign(role Role, id Identity) error {
	if id == "" {
		return ErrEmptyIdentity
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch role {
	case RoleAutomationAgent:
		p.roles.AutomationAgent = id
	case RoleFundingRelay:
		p.roles.FundingRelay = id
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return nil
}
