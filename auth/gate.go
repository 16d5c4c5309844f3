package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hibaMouhoub2/prospection-app/logging"
	"github.com/hibaMouhoub2/prospection-app/metrics"
	"github.com/hibaMouhoub2/prospection-app/revocation"
	"github.com/hibaMouhoub2/prospection-app/token"
)

// TokenVerifier is the part of the token codec the gate depends on.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// PublicRoute is an allow-list entry. An empty Method matches any method;
// Prefix makes Path match every path below it.
type PublicRoute struct {
	Method string
	Path   string
	Prefix bool
}

func (p PublicRoute) matches(method, path string) bool {
	if p.Method != "" && p.Method != method {
		return false
	}
	if p.Prefix {
		return strings.HasPrefix(path, p.Path)
	}
	return path == p.Path
}

// DefaultPublicRoutes lists the endpoints reachable without a token, both at
// the root and under /api.
func DefaultPublicRoutes() []PublicRoute {
	base := []PublicRoute{
		{Method: http.MethodPost, Path: "/auth/login"},
		{Method: http.MethodPost, Path: "/auth/register"},
		{Method: http.MethodGet, Path: "/auth/ping"},
		{Method: http.MethodGet, Path: "/structure/", Prefix: true},
	}
	out := make([]PublicRoute, 0, 2*len(base)+2)
	for _, r := range base {
		out = append(out, r)
		r.Path = "/api" + r.Path
		out = append(out, r)
	}
	return append(out,
		PublicRoute{Method: http.MethodGet, Path: "/healthz"},
		PublicRoute{Method: http.MethodGet, Path: "/metrics"},
	)
}

// Gate resolves the caller of each request. It never rejects a request:
// a missing principal is the signal later handlers act on.
type Gate struct {
	tokens  TokenVerifier
	revoked revocation.Store
	users   IdentityResolver
	public  []PublicRoute
}

// NewGate builds a Gate. A nil public list means DefaultPublicRoutes.
func NewGate(tokens TokenVerifier, revoked revocation.Store, users IdentityResolver, public []PublicRoute) *Gate {
	if public == nil {
		public = DefaultPublicRoutes()
	}
	return &Gate{tokens: tokens, revoked: revoked, users: users, public: public}
}

// Middleware attaches the resolved principal, if any, and always calls next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.isPublic(r) {
			metrics.GateOutcome(metrics.OutcomePublic)
			next.ServeHTTP(w, r)
			return
		}

		user, outcome := g.authenticate(r)
		metrics.GateOutcome(outcome)
		if outcome == metrics.OutcomeAuthenticated {
			r = r.WithContext(WithPrincipal(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) isPublic(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	for _, p := range g.public {
		if p.matches(r.Method, r.URL.Path) {
			return true
		}
	}
	return false
}

func (g *Gate) authenticate(r *http.Request) (user User, outcome string) {
	ctx := r.Context()
	log := logging.From(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("auth gate: panic during authentication", zap.Any("panic", rec))
			user, outcome = User{}, metrics.OutcomeError
		}
	}()

	raw, ok := BearerToken(r)
	if !ok {
		return User{}, metrics.OutcomeAnonymous
	}

	revoked, err := g.revoked.IsRevoked(ctx, raw)
	if err != nil {
		log.Warn("auth gate: revocation check failed", zap.Error(err))
		return User{}, metrics.OutcomeError
	}
	if revoked {
		return User{}, metrics.OutcomeRevoked
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		log.Debug("auth gate: token rejected", zap.Error(err))
		if errors.Is(err, token.ErrExpired) {
			return User{}, metrics.OutcomeExpired
		}
		return User{}, metrics.OutcomeInvalid
	}
	if claims.IsRefresh() {
		log.Debug("auth gate: refresh token used as bearer")
		return User{}, metrics.OutcomeInvalid
	}

	user, err = g.users.FindActiveByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, metrics.OutcomeUnknownIdentity
		}
		log.Warn("auth gate: identity lookup failed", zap.Error(err))
		return User{}, metrics.OutcomeError
	}
	if user.ID != claims.UserID {
		return User{}, metrics.OutcomeUnknownIdentity
	}

	// Second check: the lookup may have outlived the token.
	if _, err := g.tokens.Verify(raw); err != nil {
		log.Debug("auth gate: token rejected on recheck", zap.Error(err))
		return User{}, metrics.OutcomeExpired
	}

	return user, metrics.OutcomeAuthenticated
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// RequirePrincipal rejects requests without a principal using deny.
func RequirePrincipal(deny http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
