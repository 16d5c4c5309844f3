package prospection

import (
	"errors"

	"github.com/hibaMouhoub2/prospection-app/auth"
)

var (
	// ErrAccessDenied signals an authenticated caller not allowed to see or act on a record that exists.
	ErrAccessDenied = errors.New("prospection: access denied")
	// ErrNotFound signals the record id does not resolve.
	ErrNotFound = errors.New("prospection: not found")
)

// visibility is keyed by the caller's role. Roles missing from the table see nothing.
var visibility = map[auth.Role]func(p Prospection, caller auth.User) bool{
	auth.RoleAgent: func(p Prospection, caller auth.User) bool {
		return p.CreatorID == caller.ID || (p.AssignedAgentID != nil && *p.AssignedAgentID == caller.ID)
	},
	auth.RoleBranchChief: func(p Prospection, caller auth.User) bool {
		return sameUnit(p.BranchID, caller.BranchID)
	},
	auth.RoleSupervisor: func(p Prospection, caller auth.User) bool {
		return sameUnit(p.SupervisionID, caller.SupervisionID)
	},
	auth.RoleRegionalChief: func(p Prospection, caller auth.User) bool {
		return sameUnit(p.RegionID, caller.RegionID)
	},
	auth.RoleHeadquarters: func(Prospection, auth.User) bool {
		return true
	},
}

// listScope mirrors visibility as a query filter. ok is false when the caller
// has no placement for its level and therefore sees nothing.
var listScope = map[auth.Role]func(caller auth.User) (Filter, bool){
	auth.RoleAgent: func(caller auth.User) (Filter, bool) {
		id := caller.ID
		return Filter{CreatorOrAssignee: &id}, true
	},
	auth.RoleBranchChief: func(caller auth.User) (Filter, bool) {
		return Filter{BranchID: caller.BranchID}, caller.BranchID != nil
	},
	auth.RoleSupervisor: func(caller auth.User) (Filter, bool) {
		return Filter{SupervisionID: caller.SupervisionID}, caller.SupervisionID != nil
	},
	auth.RoleRegionalChief: func(caller auth.User) (Filter, bool) {
		return Filter{RegionID: caller.RegionID}, caller.RegionID != nil
	},
	auth.RoleHeadquarters: func(auth.User) (Filter, bool) {
		return Filter{All: true}, true
	},
}

type route struct {
	selfAssign bool
	status     Status
}

// routing decides assignment at creation by type.
var routing = map[Type]route{
	TypeCampaign:      {selfAssign: false, status: StatusNew},
	TypeAgentPlanning: {selfAssign: true, status: StatusAssigned},
	TypeCulturalEvent: {selfAssign: false, status: StatusNew},
}

func sameUnit(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

// CanView reports whether caller may read p.
func CanView(p Prospection, caller auth.User) bool {
	rule, ok := visibility[caller.Role]
	return ok && rule(p, caller)
}

// Authorize returns ErrAccessDenied when caller may not read p.
func Authorize(p Prospection, caller auth.User) error {
	if !CanView(p, caller) {
		return ErrAccessDenied
	}
	return nil
}

// CanCreate reports whether caller may create records. Only agents do.
func CanCreate(caller auth.User) bool {
	return caller.Role == auth.RoleAgent
}

// CanAssign reports whether caller may hand a record to an agent.
func CanAssign(caller auth.User) bool {
	return caller.Role.HigherThan(auth.RoleAgent)
}

// InitialRouting returns the assignee and status of a new record of type t
// created by creator.
func InitialRouting(t Type, creator auth.User) (*int64, Status) {
	r, ok := routing[t]
	if !ok {
		return nil, StatusNew
	}
	if r.selfAssign {
		id := creator.ID
		return &id, r.status
	}
	return nil, r.status
}

// ScopeFor returns the list filter matching what caller may see.
func ScopeFor(caller auth.User) (Filter, bool) {
	scope, ok := listScope[caller.Role]
	if !ok {
		return Filter{}, false
	}
	return scope(caller)
}
