package prospection

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxListLimit caps List results.
const MaxListLimit = 100

// Mutator edits a locked record. Returning an error aborts the update.
type Mutator func(p *Prospection) error

// Repository persists records and their history.
type Repository interface {
	Create(ctx context.Context, p Prospection) (Prospection, error)
	GetByID(ctx context.Context, id int64) (Prospection, error)
	List(ctx context.Context, f Filter) ([]Prospection, error)
	// Update locks the record, applies mutate and records eventType in one transaction.
	Update(ctx context.Context, id, actorID int64, eventType string, mutate Mutator) (Prospection, error)
	Events(ctx context.Context, id int64) ([]Event, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, type, status, commentaire, answers, creator_id, assigned_agent_id,
	region_id, supervision_id, branch_id, created_at, updated_at, assigned_at`

// Create inserts p and its creation event.
func (r *PGRepository) Create(ctx context.Context, p Prospection) (Prospection, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Prospection{}, fmt.Errorf("prospection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	answers := p.Answers
	if answers == nil {
		answers = map[string]string{}
	}

	const insertSQL = `
		INSERT INTO prospections (type, status, commentaire, answers, creator_id, assigned_agent_id,
			region_id, supervision_id, branch_id, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CASE WHEN $6::bigint IS NULL THEN NULL ELSE now() END)
		RETURNING ` + columns

	created, err := scanProspection(tx.QueryRow(ctx, insertSQL,
		p.Type, p.Status, p.Commentaire, answers, p.CreatorID, p.AssignedAgentID,
		p.RegionID, p.SupervisionID, p.BranchID,
	))
	if err != nil {
		return Prospection{}, fmt.Errorf("prospection: insert: %w", err)
	}

	payload := map[string]any{"type": created.Type, "status": created.Status}
	if created.AssignedAgentID != nil {
		payload["assigned_agent_id"] = *created.AssignedAgentID
	}
	if err := appendEvent(ctx, tx, created.ID, p.CreatorID, EventCreated, payload); err != nil {
		return Prospection{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Prospection{}, fmt.Errorf("prospection: commit create: %w", err)
	}
	return created, nil
}

// GetByID fetches one record.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (Prospection, error) {
	const selectSQL = `SELECT ` + columns + ` FROM prospections WHERE id = $1`

	p, err := scanProspection(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prospection{}, ErrNotFound
		}
		return Prospection{}, fmt.Errorf("prospection: get by id: %w", err)
	}
	return p, nil
}

// List returns records matching f, newest first.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Prospection, error) {
	if !f.All && f.CreatorOrAssignee == nil && f.BranchID == nil && f.SupervisionID == nil && f.RegionID == nil {
		return nil, fmt.Errorf("prospection: list without scope")
	}
	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	const query = `
		SELECT ` + columns + `
		FROM prospections
		WHERE ($1::bigint IS NULL OR creator_id = $1 OR assigned_agent_id = $1)
		  AND ($2::bigint IS NULL OR branch_id = $2)
		  AND ($3::bigint IS NULL OR supervision_id = $3)
		  AND ($4::bigint IS NULL OR region_id = $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	rows, err := r.pool.Query(ctx, query, f.CreatorOrAssignee, f.BranchID, f.SupervisionID, f.RegionID, limit)
	if err != nil {
		return nil, fmt.Errorf("prospection: list: %w", err)
	}
	defer rows.Close()

	out := make([]Prospection, 0)
	for rows.Next() {
		p, err := scanProspection(rows)
		if err != nil {
			return nil, fmt.Errorf("prospection: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prospection: iterate: %w", err)
	}
	return out, nil
}

// Update locks the row, applies mutate and stores status and assignment.
func (r *PGRepository) Update(ctx context.Context, id, actorID int64, eventType string, mutate Mutator) (Prospection, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Prospection{}, fmt.Errorf("prospection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockSQL = `SELECT ` + columns + ` FROM prospections WHERE id = $1 FOR UPDATE`
	current, err := scanProspection(tx.QueryRow(ctx, lockSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prospection{}, ErrNotFound
		}
		return Prospection{}, fmt.Errorf("prospection: lock: %w", err)
	}

	next := current
	if err := mutate(&next); err != nil {
		return Prospection{}, err
	}

	const updateSQL = `
		UPDATE prospections
		SET status = $2, assigned_agent_id = $3, assigned_at = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + columns
	updated, err := scanProspection(tx.QueryRow(ctx, updateSQL, id, next.Status, next.AssignedAgentID, next.AssignedAt))
	if err != nil {
		return Prospection{}, fmt.Errorf("prospection: update: %w", err)
	}

	payload := map[string]any{
		"previous_status": current.Status,
		"next_status":     updated.Status,
	}
	if updated.AssignedAgentID != nil {
		payload["assigned_agent_id"] = *updated.AssignedAgentID
	}
	if err := appendEvent(ctx, tx, id, actorID, eventType, payload); err != nil {
		return Prospection{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Prospection{}, fmt.Errorf("prospection: commit update: %w", err)
	}
	return updated, nil
}

// Events returns the history of a record, oldest first.
func (r *PGRepository) Events(ctx context.Context, id int64) ([]Event, error) {
	const query = `
		SELECT id, prospection_id, type, actor_id, payload, created_at
		FROM prospection_events
		WHERE prospection_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("prospection: events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ProspectionID, &e.Type, &e.ActorID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("prospection: scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prospection: iterate events: %w", err)
	}
	return out, nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, prospectionID, actorID int64, eventType string, payload map[string]any) error {
	const insertSQL = `
		INSERT INTO prospection_events (prospection_id, type, actor_id, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, insertSQL, prospectionID, eventType, actorID, payload); err != nil {
		return fmt.Errorf("prospection: append event: %w", err)
	}
	return nil
}

func scanProspection(row pgx.Row) (Prospection, error) {
	var p Prospection
	err := row.Scan(
		&p.ID,
		&p.Type,
		&p.Status,
		&p.Commentaire,
		&p.Answers,
		&p.CreatorID,
		&p.AssignedAgentID,
		&p.RegionID,
		&p.SupervisionID,
		&p.BranchID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.AssignedAt,
	)
	if err != nil {
		return Prospection{}, err
	}
	return p, nil
}
