package prospection

import (
	"fmt"
	"strings"
)

// Status is the workflow position of a record.
type Status string

const (
	StatusNew        Status = "NOUVEAU"
	StatusAssigned   Status = "ASSIGNE"
	StatusInProgress Status = "EN_COURS"
	StatusConverted  Status = "CONVERTI"
	StatusAbandoned  Status = "ABANDONNE"
)

var transitions = map[Status][]Status{
	StatusNew:        {StatusAssigned, StatusAbandoned},
	StatusAssigned:   {StatusInProgress, StatusConverted, StatusAbandoned},
	StatusInProgress: {StatusConverted, StatusAbandoned},
	StatusConverted:  nil,
	StatusAbandoned:  {StatusInProgress},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsFinal reports whether no transition leaves s.
func (s Status) IsFinal() bool {
	return s == StatusConverted
}

// IsActive reports whether the record is still being worked.
func (s Status) IsActive() bool {
	return s != StatusConverted && s != StatusAbandoned
}

// NeedsAssignee reports whether a record in s must have an assigned agent.
func (s Status) NeedsAssignee() bool {
	return s == StatusAssigned || s == StatusInProgress || s == StatusConverted
}

// ParseStatus maps a wire value to a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("prospection: unknown status %q", v)
	}
	return s, nil
}

// ParseType maps a wire value to a Type.
func ParseType(v string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(v)))
	if _, ok := routing[t]; !ok {
		return "", fmt.Errorf("prospection: unknown type %q", v)
	}
	return t, nil
}
