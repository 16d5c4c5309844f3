package structure

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested organizational unit does not exist.
var ErrNotFound = errors.New("structure: not found")

// Repository provides read access to the organizational hierarchy.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRegion fetches a region by its primary key.
func (r *Repository) GetRegion(ctx context.Context, id int64) (Region, error) {
	const query = `SELECT id, nom, code FROM regions WHERE id = $1`

	var region Region
	err := r.pool.QueryRow(ctx, query, id).Scan(&region.ID, &region.Nom, &region.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Region{}, ErrNotFound
		}
		return Region{}, fmt.Errorf("structure: region by id: %w", err)
	}
	return region, nil
}

// GetSupervision fetches a supervision by its primary key.
func (r *Repository) GetSupervision(ctx context.Context, id int64) (Supervision, error) {
	const query = `SELECT id, nom, code, region_id FROM supervisions WHERE id = $1`

	var sup Supervision
	err := r.pool.QueryRow(ctx, query, id).Scan(&sup.ID, &sup.Nom, &sup.Code, &sup.RegionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supervision{}, ErrNotFound
		}
		return Supervision{}, fmt.Errorf("structure: supervision by id: %w", err)
	}
	return sup, nil
}

// GetBranch fetches a branch by its primary key.
func (r *Repository) GetBranch(ctx context.Context, id int64) (Branch, error) {
	const query = `SELECT id, nom, code, supervision_id FROM branches WHERE id = $1`

	var branch Branch
	err := r.pool.QueryRow(ctx, query, id).Scan(&branch.ID, &branch.Nom, &branch.Code, &branch.SupervisionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrNotFound
		}
		return Branch{}, fmt.Errorf("structure: branch by id: %w", err)
	}
	return branch, nil
}

// ListRegions returns every region ordered by name.
func (r *Repository) ListRegions(ctx context.Context) ([]Region, error) {
	const query = `SELECT id, nom, code FROM regions ORDER BY nom ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("structure: list regions: %w", err)
	}
	defer rows.Close()

	var out []Region
	for rows.Next() {
		var region Region
		if err := rows.Scan(&region.ID, &region.Nom, &region.Code); err != nil {
			return nil, fmt.Errorf("structure: scan region: %w", err)
		}
		out = append(out, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("structure: iterate regions: %w", err)
	}
	return out, nil
}

// ListSupervisions returns supervisions ordered by name, restricted to
// regionID when it is non-nil.
func (r *Repository) ListSupervisions(ctx context.Context, regionID *int64) ([]Supervision, error) {
	const query = `
		SELECT id, nom, code, region_id
		FROM supervisions
		WHERE $1::bigint IS NULL OR region_id = $1
		ORDER BY nom ASC
	`

	rows, err := r.pool.Query(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("structure: list supervisions: %w", err)
	}
	defer rows.Close()

	var out []Supervision
	for rows.Next() {
		var sup Supervision
		if err := rows.Scan(&sup.ID, &sup.Nom, &sup.Code, &sup.RegionID); err != nil {
			return nil, fmt.Errorf("structure: scan supervision: %w", err)
		}
		out = append(out, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("structure: iterate supervisions: %w", err)
	}
	return out, nil
}

// ListBranches returns branches ordered by name, restricted to
// supervisionID when it is non-nil.
func (r *Repository) ListBranches(ctx context.Context, supervisionID *int64) ([]Branch, error) {
	const query = `
		SELECT id, nom, code, supervision_id
		FROM branches
		WHERE $1::bigint IS NULL OR supervision_id = $1
		ORDER BY nom ASC
	`

	rows, err := r.pool.Query(ctx, query, supervisionID)
	if err != nil {
		return nil, fmt.Errorf("structure: list branches: %w", err)
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		var branch Branch
		if err := rows.Scan(&branch.ID, &branch.Nom, &branch.Code, &branch.SupervisionID); err != nil {
			return nil, fmt.Errorf("structure: scan branch: %w", err)
		}
		out = append(out, branch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("structure: iterate branches: %w", err)
	}
	return out, nil
}
