package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists invariants that must hold at any point of a run. Each query
// returns offending rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_planning_self_assigned",
			SQL: `SELECT id, creator_id, assigned_agent_id FROM prospections
                  WHERE type = 'PLANNING_AGENT'
                    AND assigned_agent_id IS DISTINCT FROM creator_id`,
		},
		{
			Name: "O2_assigned_has_agent",
			SQL: `SELECT id FROM prospections
                  WHERE (status = 'ASSIGNE' AND (assigned_agent_id IS NULL OR assigned_at IS NULL))
                     OR (status IN ('EN_COURS', 'CONVERTI') AND assigned_agent_id IS NULL)`,
		},
		{
			Name: "O3_placement_copied_from_creator",
			SQL: `SELECT p.id FROM prospections p
                  JOIN users u ON u.id = p.creator_id
                  WHERE p.branch_id IS DISTINCT FROM u.branch_id
                     OR p.supervision_id IS DISTINCT FROM u.supervision_id
                     OR p.region_id IS DISTINCT FROM u.region_id`,
		},
		{
			Name: "O4_assignee_in_record_branch",
			SQL: `SELECT p.id, p.branch_id, a.branch_id FROM prospections p
                  JOIN users a ON a.id = p.assigned_agent_id
                  WHERE a.role <> 'AGENT' OR a.branch_id IS DISTINCT FROM p.branch_id`,
		},
		{
			Name: "O5_creation_event_present",
			SQL: `SELECT p.id FROM prospections p
                  WHERE NOT EXISTS (
                      SELECT 1 FROM prospection_events e
                      WHERE e.prospection_id = p.id AND e.type = 'PROSPECTION_CREATED')`,
		},
		{
			Name: "O6_transitions_follow_workflow",
			SQL: `SELECT e.id, e.payload->>'previous_status', e.payload->>'next_status'
                  FROM prospection_events e
                  WHERE e.type IN ('PROSPECTION_ASSIGNED', 'PROSPECTION_STATUS_CHANGED')
                    AND (e.payload->>'previous_status', e.payload->>'next_status') NOT IN (
                        VALUES ('NOUVEAU', 'ASSIGNE'), ('NOUVEAU', 'ABANDONNE'),
                               ('ASSIGNE', 'EN_COURS'), ('ASSIGNE', 'CONVERTI'), ('ASSIGNE', 'ABANDONNE'),
                               ('EN_COURS', 'CONVERTI'), ('EN_COURS', 'ABANDONNE'),
                               ('ABANDONNE', 'EN_COURS'))`,
		},
		{
			Name: "O7_latest_event_matches_status",
			SQL: `SELECT p.id, p.status, last.payload->>'next_status' FROM prospections p
                  JOIN LATERAL (
                      SELECT payload FROM prospection_events e
                      WHERE e.prospection_id = p.id AND e.type <> 'PROSPECTION_CREATED'
                      ORDER BY e.id DESC LIMIT 1) last ON TRUE
                  WHERE last.payload->>'next_status' <> p.status`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
