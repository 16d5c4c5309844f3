package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.registerAgent(t, " Sara@Example.com ", "supersafe")
	if user.Email != "sara@example.com" {
		t.Fatalf("register: expected normalized email, got %q", user.Email)
	}
	if user.Role != RoleAgent {
		t.Fatalf("register: expected default role %s got %s", RoleAgent, user.Role)
	}
	if user.Telephone != defaultTelephone {
		t.Fatalf("register: expected default telephone, got %q", user.Telephone)
	}
	if user.BranchID == nil || *user.BranchID != 100 || user.SupervisionID == nil || *user.SupervisionID != 10 || user.RegionID == nil || *user.RegionID != 1 {
		t.Fatalf("register: unexpected placement %v/%v/%v", user.RegionID, user.SupervisionID, user.BranchID)
	}

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("login: expected both tokens")
	}
	if resp.ExpiresIn != 15*time.Minute {
		t.Fatalf("login: expected 15m expiry, got %s", resp.ExpiresIn)
	}
	if resp.User.ID != user.ID || resp.User.RoleDisplayName != "Agent" {
		t.Fatalf("login: unexpected summary %+v", resp.User)
	}
	if resp.User.Branch == nil || resp.User.Branch.Nom != "Tanger Centre" {
		t.Fatalf("login: expected branch in summary, got %+v", resp.User.Branch)
	}
	if resp.User.LastLoginAt == nil || !resp.User.LastLoginAt.Equal(f.clock.Now()) {
		t.Fatalf("login: expected last login stamp, got %v", resp.User.LastLoginAt)
	}
	if _, ok := f.repo.touched[user.ID]; !ok {
		t.Fatal("login: expected last login to be recorded")
	}

	claims, err := f.codec.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims.Subject != user.Email || claims.UserID != user.ID || claims.Role != string(RoleAgent) {
		t.Fatalf("verify access token: unexpected claims %+v", claims)
	}
	if claims.BranchID == nil || *claims.BranchID != 100 {
		t.Fatalf("verify access token: expected branch claim, got %v", claims.BranchID)
	}
	if !f.codec.IsRefreshToken(resp.RefreshToken) {
		t.Fatal("login: refresh token not recognised")
	}
}

func TestService_RegisterPlacementByRole(t *testing.T) {
	cases := []struct {
		name       string
		req        RegisterRequest
		wantRegion bool
		wantSup    bool
		wantBranch bool
		wantErr    error
	}{
		{
			name:       "branch chief takes branch chain",
			req:        RegisterRequest{Role: RoleBranchChief, BranchID: int64p(100)},
			wantRegion: true,
			wantSup:    true,
			wantBranch: true,
		},
		{
			name:       "supervisor takes supervision and region",
			req:        RegisterRequest{Role: RoleSupervisor, SupervisionID: int64p(10), BranchID: int64p(100)},
			wantRegion: true,
			wantSup:    true,
		},
		{
			name:       "regional chief takes region only",
			req:        RegisterRequest{Role: RoleRegionalChief, RegionID: int64p(1), SupervisionID: int64p(10)},
			wantRegion: true,
		},
		{
			name: "headquarters has no placement",
			req:  RegisterRequest{Role: RoleHeadquarters, RegionID: int64p(1)},
		},
		{
			name:    "agent without branch",
			req:     RegisterRequest{Role: RoleAgent},
			wantErr: ErrPlacementRequired,
		},
		{
			name:    "unknown branch",
			req:     RegisterRequest{Role: RoleAgent, BranchID: int64p(999)},
			wantErr: ErrUnknownPlacement,
		},
		{
			name:    "supervisor without supervision",
			req:     RegisterRequest{Role: RoleSupervisor, RegionID: int64p(1)},
			wantErr: ErrPlacementRequired,
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			req := tc.req
			req.Nom, req.Prenom, req.Password = "Nom", "Prenom", "secret1"
			req.Email = "user" + string(rune('a'+i)) + "@example.com"

			user, err := f.svc.Register(context.Background(), req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("register: unexpected error: %v", err)
			}
			if (user.RegionID != nil) != tc.wantRegion {
				t.Fatalf("region: got %v want present=%v", user.RegionID, tc.wantRegion)
			}
			if (user.SupervisionID != nil) != tc.wantSup {
				t.Fatalf("supervision: got %v want present=%v", user.SupervisionID, tc.wantSup)
			}
			if (user.BranchID != nil) != tc.wantBranch {
				t.Fatalf("branch: got %v want present=%v", user.BranchID, tc.wantBranch)
			}
		})
	}
}

func TestService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterRequest{Nom: "A", Prenom: "B", Email: "a@example.com", Password: "short", BranchID: int64p(100)})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	_, err = f.svc.Register(ctx, RegisterRequest{Email: "  ", Password: "strongpassword"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	if _, err := f.svc.Register(ctx, RegisterRequest{Nom: "A", Prenom: "B", Email: "a@example.com", Password: "secret1", Role: "MANAGER"}); err == nil {
		t.Fatal("expected invalid role error")
	}

	f.registerAgent(t, "dup@example.com", "secret1")
	_, err = f.svc.Register(ctx, RegisterRequest{Nom: "A", Prenom: "B", Email: "DUP@example.com", Password: "secret1", BranchID: int64p(100)})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "sara@example.com", "supersafe")

	_, wrongPassword := f.svc.Login(ctx, LoginRequest{Email: "sara@example.com", Password: "nope-nope"})
	_, unknownEmail := f.svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "supersafe"})

	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("expected identical messages, got %q and %q", wrongPassword, unknownEmail)
	}
}

func TestService_LoginInactiveUser(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "sara@example.com", "supersafe")
	f.repo.update("sara@example.com", func(u *User) { u.Active = false })

	_, err := f.svc.Login(context.Background(), LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_LoginRepositoryError(t *testing.T) {
	f := newFixture(t)
	f.repo.err = errBoom

	_, err := f.svc.Login(context.Background(), LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if !errors.Is(err, errBoom) || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}

func TestService_RefreshReresolvesIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "sara@example.com", "supersafe")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.repo.update("sara@example.com", func(u *User) { u.Role = RoleBranchChief })

	refreshed, err := f.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: unexpected error: %v", err)
	}
	claims, err := f.codec.Verify(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if claims.Role != string(RoleBranchChief) {
		t.Fatalf("refresh: expected current role, got %s", claims.Role)
	}
	if claims.IsRefresh() {
		t.Fatal("refresh: expected an access token")
	}
	if refreshed.User.Role != RoleBranchChief {
		t.Fatalf("refresh: unexpected summary role %s", refreshed.User.Role)
	}
}

func TestService_RefreshRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "sara@example.com", "supersafe")
	login, err := f.svc.Login(ctx, LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for name, tok := range map[string]string{"empty": "", "access token": login.AccessToken, "garbage": "x.y.z"} {
		if _, err := f.svc.Refresh(ctx, tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("%s: expected ErrInvalidRefreshToken, got %v", name, err)
		}
	}

	f.repo.update("sara@example.com", func(u *User) { u.Active = false })
	if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("inactive: expected ErrInvalidRefreshToken, got %v", err)
	}
	f.repo.update("sara@example.com", func(u *User) { u.Active = true })

	if err := f.svc.Logout(ctx, login.AccessToken, login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("revoked: expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestService_LogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "sara@example.com", "supersafe")
	login, err := f.svc.Login(ctx, LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := f.svc.Logout(ctx, login.AccessToken, login.RefreshToken); err != nil {
			t.Fatalf("logout #%d: %v", i+1, err)
		}
	}
	for _, tok := range []string{login.AccessToken, login.RefreshToken} {
		revoked, err := f.store.IsRevoked(ctx, tok)
		if err != nil || !revoked {
			t.Fatalf("expected token revoked, got %v %v", revoked, err)
		}
	}
	if f.store.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", f.store.Len())
	}

	if err := f.svc.Logout(ctx, "", "not-a-token"); err != nil {
		t.Fatalf("logout with unusable tokens: %v", err)
	}
	if f.store.Len() != 2 {
		t.Fatalf("unusable tokens should not be stored, got %d entries", f.store.Len())
	}
}

func TestService_LogoutStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "sara@example.com", "supersafe")
	login, err := f.svc.Login(ctx, LoginRequest{Email: "sara@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.svc.revoked = failingStore{}
	if err := f.svc.Logout(ctx, login.AccessToken, ""); err == nil {
		t.Fatal("expected store failure to surface")
	}
}
