package prospection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hibaMouhoub2/prospection-app/auth"
	"github.com/hibaMouhoub2/prospection-app/logging"
)

var (
	// ErrInvalidTransition signals a status change the workflow does not allow.
	ErrInvalidTransition = errors.New("prospection: invalid status transition")
	// ErrInvalidAssignee signals an assignment target that is not an active agent of the record's branch.
	ErrInvalidAssignee = errors.New("prospection: invalid assignee")
	// ErrInvalidInput signals a malformed create request.
	ErrInvalidInput = errors.New("prospection: invalid input")
)

// MaxCommentLength bounds the free-text comment, in characters.
const MaxCommentLength = 1000

// AgentDirectory resolves assignment targets.
type AgentDirectory interface {
	FindActiveByID(ctx context.Context, id int64) (auth.User, error)
}

// Service applies the authorization policy around the repository.
type Service struct {
	repo   Repository
	agents AgentDirectory
	now    func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, agents AgentDirectory) *Service {
	return &Service{repo: repo, agents: agents, now: time.Now}
}

// WithClock overrides the time source used for assignment stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create stores a new record for an agent, inheriting the agent's placement
// and routed by type.
func (s *Service) Create(ctx context.Context, caller auth.User, params CreateParams) (Prospection, error) {
	if !CanCreate(caller) {
		return Prospection{}, ErrAccessDenied
	}
	if _, ok := routing[params.Type]; !ok {
		return Prospection{}, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, params.Type)
	}
	comment := strings.TrimSpace(params.Commentaire)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return Prospection{}, fmt.Errorf("%w: comment longer than %d characters", ErrInvalidInput, MaxCommentLength)
	}
	if len(params.Answers) == 0 {
		return Prospection{}, fmt.Errorf("%w: at least one answer is required", ErrInvalidInput)
	}

	assignee, status := InitialRouting(params.Type, caller)
	p := Prospection{
		Type:            params.Type,
		Status:          status,
		Commentaire:     comment,
		Answers:         params.Answers,
		CreatorID:       caller.ID,
		AssignedAgentID: assignee,
		RegionID:        copyID(caller.RegionID),
		SupervisionID:   copyID(caller.SupervisionID),
		BranchID:        copyID(caller.BranchID),
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Prospection{}, err
	}
	logging.From(ctx).Info("prospection created",
		zap.Int64("prospection_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.String("status", string(created.Status)),
	)
	return created, nil
}

// Get returns a record the caller may see.
func (s *Service) Get(ctx context.Context, caller auth.User, id int64) (Prospection, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Prospection{}, err
	}
	if err := Authorize(p, caller); err != nil {
		return Prospection{}, err
	}
	return p, nil
}

// ListMine returns what an agent created or was assigned, newest first.
func (s *Service) ListMine(ctx context.Context, caller auth.User) ([]Prospection, error) {
	if caller.Role != auth.RoleAgent {
		return nil, ErrAccessDenied
	}
	id := caller.ID
	return s.repo.List(ctx, Filter{CreatorOrAssignee: &id})
}

// ListVisible returns every record the caller may see, newest first.
func (s *Service) ListVisible(ctx context.Context, caller auth.User, limit int) ([]Prospection, error) {
	filter, ok := ScopeFor(caller)
	if !ok {
		return []Prospection{}, nil
	}
	filter.Limit = limit
	return s.repo.List(ctx, filter)
}

// Assign hands an unassigned record to an active agent of its branch.
func (s *Service) Assign(ctx context.Context, caller auth.User, id, agentID int64) (Prospection, error) {
	if !CanAssign(caller) {
		return Prospection{}, ErrAccessDenied
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return Prospection{}, err
	}

	agent, err := s.agents.FindActiveByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return Prospection{}, ErrInvalidAssignee
		}
		return Prospection{}, fmt.Errorf("prospection: resolve assignee: %w", err)
	}
	if agent.Role != auth.RoleAgent {
		return Prospection{}, ErrInvalidAssignee
	}

	return s.repo.Update(ctx, id, caller.ID, EventAssigned, func(p *Prospection) error {
		if err := Authorize(*p, caller); err != nil {
			return err
		}
		if !CanTransition(p.Status, StatusAssigned) {
			return ErrInvalidTransition
		}
		if !sameUnit(agent.BranchID, p.BranchID) {
			return ErrInvalidAssignee
		}
		now := s.now()
		p.AssignedAgentID = &agent.ID
		p.AssignedAt = &now
		p.Status = StatusAssigned
		return nil
	})
}

// Transition moves a visible record to next. Assignment goes through Assign,
// and a record without an assignee cannot be worked or converted.
func (s *Service) Transition(ctx context.Context, caller auth.User, id int64, next Status) (Prospection, error) {
	if next == StatusAssigned {
		return Prospection{}, ErrInvalidTransition
	}
	return s.repo.Update(ctx, id, caller.ID, EventStatusChanged, func(p *Prospection) error {
		if err := Authorize(*p, caller); err != nil {
			return err
		}
		if !CanTransition(p.Status, next) {
			return ErrInvalidTransition
		}
		if next.NeedsAssignee() && p.AssignedAgentID == nil {
			return fmt.Errorf("%w: record has no assignee", ErrInvalidTransition)
		}
		p.Status = next
		return nil
	})
}

// History returns the events of a record the caller may see.
func (s *Service) History(ctx context.Context, caller auth.User, id int64) ([]Event, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.repo.Events(ctx, id)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
