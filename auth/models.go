package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role is one entry of the fixed organizational hierarchy.
type Role string

const (
	RoleAgent         Role = "AGENT"
	RoleBranchChief   Role = "CHEF_BRANCHE"
	RoleSupervisor    Role = "SUPERVISEUR"
	RoleRegionalChief Role = "CHEF_ANIMATION_REGIONAL"
	RoleHeadquarters  Role = "SIEGE"
)

// ErrInvalidRole signals a wire value outside the hierarchy.
var ErrInvalidRole = errors.New("auth: invalid role")

type roleInfo struct {
	level       int
	displayName string
}

var roleTable = map[Role]roleInfo{
	RoleAgent:         {level: 1, displayName: "Agent"},
	RoleBranchChief:   {level: 2, displayName: "Chef de branche"},
	RoleSupervisor:    {level: 3, displayName: "Superviseur"},
	RoleRegionalChief: {level: 4, displayName: "Chef animation régional"},
	RoleHeadquarters:  {level: 5, displayName: "SIEGE"},
}

// ParseRole maps a wire value to a Role, ignoring case and surrounding spaces.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Valid reports whether r is part of the hierarchy.
func (r Role) Valid() bool {
	_, ok := roleTable[r]
	return ok
}

// Level returns the hierarchy level, 0 for unknown roles.
func (r Role) Level() int {
	return roleTable[r].level
}

// DisplayName returns the human label of the role.
func (r Role) DisplayName() string {
	if info, ok := roleTable[r]; ok {
		return info.displayName
	}
	return string(r)
}

// HigherThan reports whether r sits strictly above other.
func (r Role) HigherThan(other Role) bool {
	return r.Level() > other.Level()
}

// LowerThan reports whether r sits strictly below other.
func (r Role) LowerThan(other Role) bool {
	return r.Level() < other.Level()
}

// LowerRoles lists every role strictly below r, lowest first.
func (r Role) LowerRoles() []Role {
	var out []Role
	for candidate := range roleTable {
		if candidate.LowerThan(r) {
			out = append(out, candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level() < out[j].Level() })
	return out
}

// User is the domain representation of an identity.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID            int64
	Email         string
	Nom           string
	Prenom        string
	Telephone     string
	PasswordHash  string
	Role          Role
	Active        bool
	RegionID      *int64
	SupervisionID *int64
	BranchID      *int64
	CreatedAt     time.Time
	LastLoginAt   *time.Time
}

// Placement names an organizational unit attached to a user summary.
type Placement struct {
	ID   int64  `json:"id"`
	Nom  string `json:"nom"`
	Code string `json:"code"`
}

// Summary is the identity view returned by login, refresh and me.
type Summary struct {
	ID              int64      `json:"id"`
	Nom             string     `json:"nom"`
	Prenom          string     `json:"prenom"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	RoleDisplayName string     `json:"roleDisplayName"`
	Telephone       string     `json:"telephone"`
	LastLoginAt     *time.Time `json:"derniereConnexion,omitempty"`
	Region          *Placement `json:"region,omitempty"`
	Supervision     *Placement `json:"supervision,omitempty"`
	Branch          *Placement `json:"branche,omitempty"`
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	Email         string `json:"email"`
	Telephone     string `json:"telephone"`
	Password      string `json:"motDePasse"`
	Role          Role   `json:"role"`
	RegionID      *int64 `json:"regionId"`
	SupervisionID *int64 `json:"supervisionId"`
	BranchID      *int64 `json:"brancheId"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"motDePasse"`
}
