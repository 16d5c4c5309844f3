package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibaMouhoub2/prospection-app/revocation"
	"github.com/hibaMouhoub2/prospection-app/structure"
	"github.com/hibaMouhoub2/prospection-app/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeRepository struct {
	mu      sync.Mutex
	users   map[string]User
	nextID  int64
	touched map[int64]time.Time
	err     error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:   make(map[string]User),
		nextID:  1,
		touched: make(map[int64]time.Time),
	}
}

func (f *fakeRepository) CreateUser(_ context.Context, params CreateUserParams) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[params.Email]; exists {
		return User{}, ErrDuplicateEmail
	}
	user := User{
		ID:            f.nextID,
		Email:         params.Email,
		Nom:           params.Nom,
		Prenom:        params.Prenom,
		Telephone:     params.Telephone,
		PasswordHash:  params.PasswordHash,
		Role:          params.Role,
		Active:        true,
		RegionID:      params.RegionID,
		SupervisionID: params.SupervisionID,
		BranchID:      params.BranchID,
		CreatedAt:     time.Now(),
	}
	f.nextID++
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeRepository) FindActiveByEmail(_ context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return User{}, f.err
	}
	user, ok := f.users[email]
	if !ok || !user.Active {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) FindActiveByID(_ context.Context, id int64) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id && user.Active {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (f *fakeRepository) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakeRepository) update(email string, mutate func(*User)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[email]
	mutate(&user)
	f.users[email] = user
}

type fakeStructure struct{}

var (
	regionNord = structure.Region{Unit: structure.Unit{ID: 1, Nom: "Nord", Code: "RN"}}
	supTanger  = structure.Supervision{Unit: structure.Unit{ID: 10, Nom: "Tanger", Code: "ST"}, RegionID: 1}
	branchA    = structure.Branch{Unit: structure.Unit{ID: 100, Nom: "Tanger Centre", Code: "B100"}, SupervisionID: 10}
)

func (fakeStructure) GetRegion(_ context.Context, id int64) (structure.Region, error) {
	if id == regionNord.ID {
		return regionNord, nil
	}
	return structure.Region{}, structure.ErrNotFound
}

func (fakeStructure) GetSupervision(_ context.Context, id int64) (structure.Supervision, error) {
	if id == supTanger.ID {
		return supTanger, nil
	}
	return structure.Supervision{}, structure.ErrNotFound
}

func (fakeStructure) GetBranch(_ context.Context, id int64) (structure.Branch, error) {
	if id == branchA.ID {
		return branchA, nil
	}
	return structure.Branch{}, structure.ErrNotFound
}

func (f fakeStructure) ResolveRegion(ctx context.Context, id int64) (structure.Chain, error) {
	region, err := f.GetRegion(ctx, id)
	if err != nil {
		return structure.Chain{}, err
	}
	return structure.Chain{Region: &region}, nil
}

func (f fakeStructure) ResolveSupervision(ctx context.Context, id int64) (structure.Chain, error) {
	sup, err := f.GetSupervision(ctx, id)
	if err != nil {
		return structure.Chain{}, err
	}
	chain, err := f.ResolveRegion(ctx, sup.RegionID)
	if err != nil {
		return structure.Chain{}, err
	}
	chain.Supervision = &sup
	return chain, nil
}

func (f fakeStructure) ResolveBranch(ctx context.Context, id int64) (structure.Chain, error) {
	branch, err := f.GetBranch(ctx, id)
	if err != nil {
		return structure.Chain{}, err
	}
	chain, err := f.ResolveSupervision(ctx, branch.SupervisionID)
	if err != nil {
		return structure.Chain{}, err
	}
	chain.Branch = &branch
	return chain, nil
}

type failingStore struct{}

func (failingStore) Revoke(context.Context, string, time.Duration) error {
	return revocation.ErrUnavailable
}

func (failingStore) IsRevoked(context.Context, string) (bool, error) {
	return false, revocation.ErrUnavailable
}

var errBoom = errors.New("boom")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	repo  *fakeRepository
	codec *token.Codec
	store *revocation.Memory
	clock *testClock
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{t: time.Now().Truncate(time.Second)}
	codec, err := token.NewCodec(testSecret, "prospection-app", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	codec.WithClock(clock.Now)

	repo := newFakeRepository()
	store := revocation.NewMemory(time.Hour, time.Minute)
	svc := NewService(repo, codec, store, fakeStructure{}).WithClock(clock.Now)
	return &fixture{repo: repo, codec: codec, store: store, clock: clock, svc: svc}
}

func int64p(v int64) *int64 { return &v }

func (f *fixture) registerAgent(t *testing.T, email, password string) User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterRequest{
		Nom:      "Alaoui",
		Prenom:   "Sara",
		Email:    email,
		Password: password,
		BranchID: int64p(branchA.ID),
	})
	if err != nil {
		t.Fatalf("register %s: unexpected error: %v", email, err)
	}
	return user
}
