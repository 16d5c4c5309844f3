package prospection

import "time"

// Type drives routing at creation.
type Type string

const (
	TypeCampaign      Type = "CAMPAGNE_PROSPECTION"
	TypeAgentPlanning Type = "PLANNING_AGENT"
	TypeCulturalEvent Type = "EVENEMENT_CULTUREL"
)

// Prospection is a questionnaire submission protected by the visibility rules.
// Placement ids are copied from the creator at creation and never recomputed.
type Prospection struct {
	ID              int64
	Type            Type
	Status          Status
	Commentaire     string
	Answers         map[string]string
	CreatorID       int64
	AssignedAgentID *int64
	RegionID        *int64
	SupervisionID   *int64
	BranchID        *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AssignedAt      *time.Time
}

// CreateParams is the caller-supplied part of a new record.
type CreateParams struct {
	Type        Type
	Commentaire string
	Answers     map[string]string
}

// Event types recorded in a record's history.
const (
	EventCreated       = "PROSPECTION_CREATED"
	EventAssigned      = "PROSPECTION_ASSIGNED"
	EventStatusChanged = "PROSPECTION_STATUS_CHANGED"
)

// Event is one entry of a record's history.
type Event struct {
	ID            int64
	ProspectionID int64
	Type          string
	ActorID       int64
	Payload       map[string]any
	CreatedAt     time.Time
}

// Filter narrows List. Exactly one scope field is expected to be set, or All.
type Filter struct {
	CreatorOrAssignee *int64
	BranchID          *int64
	SupervisionID     *int64
	RegionID          *int64
	All               bool
	Limit             int
}
