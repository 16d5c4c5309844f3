package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hibaMouhoub2/prospection-app/logging"
	"github.com/hibaMouhoub2/prospection-app/metrics"
	"github.com/hibaMouhoub2/prospection-app/revocation"
	"github.com/hibaMouhoub2/prospection-app/structure"
	"github.com/hibaMouhoub2/prospection-app/token"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

const defaultTelephone = "0000000000"

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 6 characters")
	// ErrMissingFields signals an incomplete registration.
	ErrMissingFields = errors.New("auth: nom, prenom and email are required")
	// ErrPlacementRequired signals the role's organizational unit was not given.
	ErrPlacementRequired = errors.New("auth: placement required for role")
	// ErrUnknownPlacement signals the given organizational unit does not exist.
	ErrUnknownPlacement = errors.New("auth: unknown placement")
	// ErrInvalidRefreshToken covers revoked, expired, malformed and non-refresh tokens.
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
)

// StructureReader resolves organizational units for registration and summaries.
type StructureReader interface {
	GetRegion(ctx context.Context, id int64) (structure.Region, error)
	GetSupervision(ctx context.Context, id int64) (structure.Supervision, error)
	GetBranch(ctx context.Context, id int64) (structure.Branch, error)
	ResolveRegion(ctx context.Context, id int64) (structure.Chain, error)
	ResolveSupervision(ctx context.Context, id int64) (structure.Chain, error)
	ResolveBranch(ctx context.Context, id int64) (structure.Chain, error)
}

// Service handles authentication business logic.
type Service struct {
	repo      Repository
	verifier  *CredentialVerifier
	tokens    *token.Codec
	revoked   revocation.Store
	structure StructureReader
	now       func() time.Time
}

// LoginResult bundles the tokens and identity summary returned after a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         Summary
}

// RefreshResult carries a renewed access token. The refresh token is not rotated.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        Summary
}

// NewService creates a new authentication service.
func NewService(repo Repository, tokens *token.Codec, revoked revocation.Store, structure StructureReader) *Service {
	return &Service{
		repo:      repo,
		verifier:  NewCredentialVerifier(repo),
		tokens:    tokens,
		revoked:   revoked,
		structure: structure,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for last-login stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates a new active user account placed according to its role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	if len(req.Password) < MinPasswordLength {
		return User{}, ErrWeakPassword
	}

	email := NormalizeEmail(req.Email)
	nom := strings.TrimSpace(req.Nom)
	prenom := strings.TrimSpace(req.Prenom)
	if email == "" || nom == "" || prenom == "" {
		return User{}, ErrMissingFields
	}

	role := RoleAgent
	if strings.TrimSpace(string(req.Role)) != "" {
		parsed, err := ParseRole(string(req.Role))
		if err != nil {
			return User{}, err
		}
		role = parsed
	}

	chain, err := s.placementFor(ctx, role, req)
	if err != nil {
		return User{}, err
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}

	telephone := strings.TrimSpace(req.Telephone)
	if telephone == "" {
		telephone = defaultTelephone
	}

	params := CreateUserParams{
		Email:        email,
		Nom:          nom,
		Prenom:       prenom,
		Telephone:    telephone,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if chain.Region != nil {
		params.RegionID = &chain.Region.ID
	}
	if chain.Supervision != nil {
		params.SupervisionID = &chain.Supervision.ID
	}
	if chain.Branch != nil {
		params.BranchID = &chain.Branch.ID
	}

	return s.repo.CreateUser(ctx, params)
}

// placementFor derives the stored placement from the unit that is
// authoritative for the role.
func (s *Service) placementFor(ctx context.Context, role Role, req RegisterRequest) (structure.Chain, error) {
	var (
		chain structure.Chain
		err   error
	)
	switch role {
	case RoleAgent, RoleBranchChief:
		if req.BranchID == nil {
			return structure.Chain{}, fmt.Errorf("%w: %s needs a branch", ErrPlacementRequired, role)
		}
		chain, err = s.structure.ResolveBranch(ctx, *req.BranchID)
	case RoleSupervisor:
		if req.SupervisionID == nil {
			return structure.Chain{}, fmt.Errorf("%w: %s needs a supervision", ErrPlacementRequired, role)
		}
		chain, err = s.structure.ResolveSupervision(ctx, *req.SupervisionID)
	case RoleRegionalChief:
		if req.RegionID == nil {
			return structure.Chain{}, fmt.Errorf("%w: %s needs a region", ErrPlacementRequired, role)
		}
		chain, err = s.structure.ResolveRegion(ctx, *req.RegionID)
	case RoleHeadquarters:
		return structure.Chain{}, nil
	}
	if err != nil {
		if errors.Is(err, structure.ErrNotFound) {
			return structure.Chain{}, ErrUnknownPlacement
		}
		return structure.Chain{}, fmt.Errorf("auth: resolve placement: %w", err)
	}
	return chain, nil
}

// Login authenticates a user and returns an access and a refresh token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	log := logging.From(ctx)

	user, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.Login(metrics.LoginInvalidCredentials)
			log.Info("login rejected", zap.String("outcome", metrics.LoginInvalidCredentials))
			return LoginResult{}, ErrInvalidCredentials
		}
		metrics.Login(metrics.LoginError)
		return LoginResult{}, fmt.Errorf("auth: login: %w", err)
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("record last login failed", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	id := tokenIdentity(user)
	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		metrics.Login(metrics.LoginError)
		return LoginResult{}, fmt.Errorf("auth: issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		metrics.Login(metrics.LoginError)
		return LoginResult{}, fmt.Errorf("auth: issue refresh token: %w", err)
	}

	summary, err := s.Summarize(ctx, user)
	if err != nil {
		metrics.Login(metrics.LoginError)
		return LoginResult{}, err
	}

	metrics.Login(metrics.LoginSuccess)
	log.Info("login succeeded", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.AccessTTL(),
		User:         summary,
	}, nil
}

// Refresh mints a new access token from a refresh token after resolving the
// identity again. Role and placement come from the current identity, not the token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if refreshToken == "" {
		return RefreshResult{}, ErrInvalidRefreshToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, refreshToken)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("auth: refresh: %w", err)
	}
	if revoked {
		return RefreshResult{}, ErrInvalidRefreshToken
	}

	claims, err := s.tokens.Verify(refreshToken)
	if err != nil || !claims.IsRefresh() {
		return RefreshResult{}, ErrInvalidRefreshToken
	}

	user, err := s.repo.FindActiveByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return RefreshResult{}, ErrInvalidRefreshToken
		}
		return RefreshResult{}, fmt.Errorf("auth: refresh: %w", err)
	}
	if user.ID != claims.UserID {
		return RefreshResult{}, ErrInvalidRefreshToken
	}

	access, err := s.tokens.IssueAccessToken(tokenIdentity(user))
	if err != nil {
		return RefreshResult{}, fmt.Errorf("auth: issue access token: %w", err)
	}

	summary, err := s.Summarize(ctx, user)
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{AccessToken: access, ExpiresIn: s.tokens.AccessTTL(), User: summary}, nil
}

// Logout revokes the given tokens for the rest of their lifetime. Tokens that
// are empty, foreign or already expired cannot authenticate and are skipped,
// so repeated calls succeed.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	live := func(tok string) string {
		if tok == "" || s.tokens.Remaining(tok) <= 0 {
			return ""
		}
		return tok
	}
	accessToken, refreshToken = live(accessToken), live(refreshToken)

	if err := revocation.RevokeBoth(ctx, s.revoked, s.tokens.Remaining, accessToken, refreshToken); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}

	n := 0
	for _, tok := range []string{accessToken, refreshToken} {
		if tok != "" {
			n++
		}
	}
	metrics.Revoked(n)
	logging.From(ctx).Debug("logout", zap.Int("revoked", n))
	return nil
}

// Me returns the summary of the authenticated principal.
func (s *Service) Me(ctx context.Context, principal User) (Summary, error) {
	return s.Summarize(ctx, principal)
}

// Summarize builds the identity view, naming each organizational unit.
// Units that no longer resolve are left out.
func (s *Service) Summarize(ctx context.Context, user User) (Summary, error) {
	summary := Summary{
		ID:              user.ID,
		Nom:             user.Nom,
		Prenom:          user.Prenom,
		Email:           user.Email,
		Role:            user.Role,
		RoleDisplayName: user.Role.DisplayName(),
		Telephone:       user.Telephone,
		LastLoginAt:     user.LastLoginAt,
	}

	if user.RegionID != nil {
		region, err := s.structure.GetRegion(ctx, *user.RegionID)
		if err = skipMissing(err); err != nil {
			return Summary{}, err
		}
		if region.ID != 0 {
			summary.Region = &Placement{ID: region.ID, Nom: region.Nom, Code: region.Code}
		}
	}
	if user.SupervisionID != nil {
		sup, err := s.structure.GetSupervision(ctx, *user.SupervisionID)
		if err = skipMissing(err); err != nil {
			return Summary{}, err
		}
		if sup.ID != 0 {
			summary.Supervision = &Placement{ID: sup.ID, Nom: sup.Nom, Code: sup.Code}
		}
	}
	if user.BranchID != nil {
		branch, err := s.structure.GetBranch(ctx, *user.BranchID)
		if err = skipMissing(err); err != nil {
			return Summary{}, err
		}
		if branch.ID != 0 {
			summary.Branch = &Placement{ID: branch.ID, Nom: branch.Nom, Code: branch.Code}
		}
	}
	return summary, nil
}

func skipMissing(err error) error {
	if err == nil || errors.Is(err, structure.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("auth: summarize: %w", err)
}

func tokenIdentity(u User) token.Identity {
	return token.Identity{
		UserID:        u.ID,
		Email:         u.Email,
		Nom:           u.Nom,
		Prenom:        u.Prenom,
		Role:          string(u.Role),
		RegionID:      u.RegionID,
		SupervisionID: u.SupervisionID,
		BranchID:      u.BranchID,
	}
}
