package structure

import (
	"context"
	"fmt"
)

// Reader abstracts repository operations for the service.
type Reader interface {
	GetRegion(ctx context.Context, id int64) (Region, error)
	GetSupervision(ctx context.Context, id int64) (Supervision, error)
	GetBranch(ctx context.Context, id int64) (Branch, error)
	ListRegions(ctx context.Context) ([]Region, error)
	ListSupervisions(ctx context.Context, regionID *int64) ([]Supervision, error)
	ListBranches(ctx context.Context, supervisionID *int64) ([]Branch, error)
}

// Chain is a resolved placement. Levels above the starting unit are filled in,
// levels below it stay nil.
type Chain struct {
	Region      *Region
	Supervision *Supervision
	Branch      *Branch
}

// Service exposes the hierarchy lookups.
type Service struct {
	repo Reader
}

// NewService builds a Service using the provided repository.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// GetRegion returns one region or ErrNotFound.
func (s *Service) GetRegion(ctx context.Context, id int64) (Region, error) {
	return s.repo.GetRegion(ctx, id)
}

// GetSupervision returns one supervision or ErrNotFound.
func (s *Service) GetSupervision(ctx context.Context, id int64) (Supervision, error) {
	return s.repo.GetSupervision(ctx, id)
}

// GetBranch returns one branch or ErrNotFound.
func (s *Service) GetBranch(ctx context.Context, id int64) (Branch, error) {
	return s.repo.GetBranch(ctx, id)
}

// ListRegions returns every region ordered by name.
func (s *Service) ListRegions(ctx context.Context) ([]Region, error) {
	return s.repo.ListRegions(ctx)
}

// ListSupervisions returns supervisions ordered by name, limited to one
// region when regionID is set.
func (s *Service) ListSupervisions(ctx context.Context, regionID *int64) ([]Supervision, error) {
	return s.repo.ListSupervisions(ctx, regionID)
}

// ListBranches returns branches ordered by name, limited to one supervision
// when supervisionID is set.
func (s *Service) ListBranches(ctx context.Context, supervisionID *int64) ([]Branch, error) {
	return s.repo.ListBranches(ctx, supervisionID)
}

// ResolveBranch walks from a branch up to its region.
func (s *Service) ResolveBranch(ctx context.Context, id int64) (Chain, error) {
	branch, err := s.repo.GetBranch(ctx, id)
	if err != nil {
		return Chain{}, err
	}
	chain, err := s.ResolveSupervision(ctx, branch.SupervisionID)
	if err != nil {
		return Chain{}, fmt.Errorf("structure: branch %d: %w", id, err)
	}
	chain.Branch = &branch
	return chain, nil
}

// ResolveSupervision walks from a supervision up to its region.
func (s *Service) ResolveSupervision(ctx context.Context, id int64) (Chain, error) {
	sup, err := s.repo.GetSupervision(ctx, id)
	if err != nil {
		return Chain{}, err
	}
	chain, err := s.ResolveRegion(ctx, sup.RegionID)
	if err != nil {
		return Chain{}, fmt.Errorf("structure: supervision %d: %w", id, err)
	}
	chain.Supervision = &sup
	return chain, nil
}

// ResolveRegion returns a chain holding only the region.
func (s *Service) ResolveRegion(ctx context.Context, id int64) (Chain, error) {
	region, err := s.repo.GetRegion(ctx, id)
	if err != nil {
		return Chain{}, err
	}
	return Chain{Region: &region}, nil
}
