package auth

import (
	"errors"
	"reflect"
	"testing"
)

func TestRole_Levels(t *testing.T) {
	order := []Role{RoleAgent, RoleBranchChief, RoleSupervisor, RoleRegionalChief, RoleHeadquarters}
	for i, r := range order {
		if r.Level() != i+1 {
			t.Fatalf("%s: expected level %d, got %d", r, i+1, r.Level())
		}
		for j, other := range order {
			if got := r.HigherThan(other); got != (i > j) {
				t.Fatalf("%s.HigherThan(%s) = %v", r, other, got)
			}
			if got := r.LowerThan(other); got != (i < j) {
				t.Fatalf("%s.LowerThan(%s) = %v", r, other, got)
			}
		}
	}
}

func TestRole_LowerRoles(t *testing.T) {
	got := RoleSupervisor.LowerRoles()
	want := []Role{RoleAgent, RoleBranchChief}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(RoleAgent.LowerRoles()) != 0 {
		t.Fatalf("agent should have no lower roles")
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" chef_branche ")
	if err != nil || r != RoleBranchChief {
		t.Fatalf("expected CHEF_BRANCHE, got %q %v", r, err)
	}
	if _, err := ParseRole("ADMIN"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if RoleRegionalChief.DisplayName() != "Chef animation régional" {
		t.Fatalf("unexpected display name %q", RoleRegionalChief.DisplayName())
	}
}
