package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/hibaMouhoub2/prospection-app/auth"
	"github.com/hibaMouhoub2/prospection-app/prospection"
)

var types = []prospection.Type{prospection.TypeCampaign, prospection.TypeAgentPlanning, prospection.TypeCulturalEvent}

var statuses = []prospection.Status{
	prospection.StatusInProgress,
	prospection.StatusConverted,
	prospection.StatusAbandoned,
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

func pause(base, jitter int) {
	time.Sleep(time.Duration(base+rand.Intn(jitter)) * time.Millisecond)
}

// Creator keeps submitting records of random types as agent.
func Creator(ctx context.Context, svc *prospection.Service, agent auth.User, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		typ := types[rand.Intn(len(types))]
		_, err := svc.Create(ctx, agent, prospection.CreateParams{
			Type:        typ,
			Commentaire: fmt.Sprintf("stress %d", rand.Int63()),
			Answers:     map[string]string{"q1": "oui"},
		})
		if err != nil && !transient(err) {
			return fmt.Errorf("creator %d: %w", agent.ID, err)
		}
		pause(10, 20)
	}
}

// Assigner races other assigners to hand new records of its branch to agents.
func Assigner(ctx context.Context, svc *prospection.Service, chief auth.User, agents []auth.User, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		visible, err := svc.ListVisible(ctx, chief, prospection.MaxListLimit)
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("assigner list: %w", err)
		}
		for _, p := range visible {
			if p.Status != prospection.StatusNew {
				continue
			}
			agent := agents[rand.Intn(len(agents))]
			_, err := svc.Assign(ctx, chief, p.ID, agent.ID)
			switch {
			case err == nil:
			case errors.Is(err, prospection.ErrInvalidTransition), errors.Is(err, prospection.ErrInvalidAssignee):
				// lost the race or picked an agent of another branch
			case transient(err):
			default:
				return fmt.Errorf("assigner %d: %w", chief.ID, err)
			}
			break
		}
		pause(20, 40)
	}
}

// Worker moves the agent's records through random transitions. Refused
// transitions are expected.
func Worker(ctx context.Context, svc *prospection.Service, agent auth.User, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		mine, err := svc.ListMine(ctx, agent)
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("worker list: %w", err)
		}
		if len(mine) > 0 {
			p := mine[rand.Intn(len(mine))]
			next := statuses[rand.Intn(len(statuses))]
			_, err := svc.Transition(ctx, agent, p.ID, next)
			if err != nil && !errors.Is(err, prospection.ErrInvalidTransition) && !transient(err) {
				return fmt.Errorf("worker %d: %w", agent.ID, err)
			}
		}
		pause(15, 35)
	}
}

// Reader lists what caller may see and fails when the list query returns a
// record the visibility table would refuse.
func Reader(ctx context.Context, svc *prospection.Service, caller auth.User, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		visible, err := svc.ListVisible(ctx, caller, prospection.MaxListLimit)
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("reader list: %w", err)
		}
		for _, p := range visible {
			if !prospection.CanView(p, caller) {
				return fmt.Errorf("reader %d (%s): listed record %d outside its scope", caller.ID, caller.Role, p.ID)
			}
		}
		pause(30, 50)
	}
}

// SessionCycler logs in, calls a gated handler, logs out and checks the
// revoked token no longer authenticates.
func SessionCycler(ctx context.Context, svc *auth.Service, gate *auth.Gate, email, password string, stop <-chan struct{}) error {
	protected := gate.Middleware(auth.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	call := func(access string) int {
		req := httptest.NewRequest(http.MethodGet, "/prospections", nil).WithContext(ctx)
		req.Header.Set("Authorization", "Bearer "+access)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		res, err := svc.Login(ctx, auth.LoginRequest{Email: email, Password: password})
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("session login: %w", err)
		}
		// A fresh token may still be refused while chaos drops the identity lookup.
		_ = call(res.AccessToken)
		if err := svc.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
			return fmt.Errorf("session logout: %w", err)
		}
		if code := call(res.AccessToken); code != http.StatusUnauthorized {
			return fmt.Errorf("session: revoked token answered %d", code)
		}
		if _, err := svc.Refresh(ctx, res.RefreshToken); !errors.Is(err, auth.ErrInvalidRefreshToken) {
			return fmt.Errorf("session: revoked refresh token accepted: %v", err)
		}
		pause(50, 100)
	}
}

// transient reports errors caused by the chaos actor killing backends or by shutdown.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"terminating connection", "conn closed", "connection reset", "unexpected EOF", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
