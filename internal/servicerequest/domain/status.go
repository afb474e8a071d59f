package domain

import (
	"strings"
)

// Status is a service request lifecycle state. Legacy values are kept
// verbatim so they round-trip to the record store, but every decision is
// made on the canonical state they alias.
type Status string

const (
	StatusRequested                  Status = "requested"
	StatusPendingReview              Status = "pending_review"
	StatusPendingMeetingConfirmation Status = "pending_meeting_confirmation"
	StatusCompleted                  Status = "completed"
	StatusCancelled                  Status = "cancelled"
	StatusRejectedByExpert           Status = "rejected_by_expert"

	StatusSubmitted         Status = "submitted"
	StatusPending           Status = "pending"
	StatusAssigned          Status = "assigned"
	StatusRevisionRequested Status = "revision_requested"
	StatusInProgress        Status = "in_progress"
)

// StatusRevision is the state written when a revision is requested.
const StatusRevision = StatusRevisionRequested

type statusInfo struct {
	canonical Status
	wire      string
}

var statusTable = map[Status]statusInfo{
	StatusRequested:                  {StatusRequested, "Requested"},
	StatusPendingReview:              {StatusPendingReview, "PendingReview"},
	StatusPendingMeetingConfirmation: {StatusPendingMeetingConfirmation, "PendingMeetingConfirmation"},
	StatusCompleted:                  {StatusCompleted, "Completed"},
	StatusCancelled:                  {StatusCancelled, "Cancelled"},
	StatusRejectedByExpert:           {StatusRejectedByExpert, "RejectedByExpert"},

	StatusSubmitted:         {StatusRequested, "Submitted"},
	StatusPending:           {StatusRequested, "Pending"},
	StatusAssigned:          {StatusPendingReview, "Assigned"},
	StatusRevisionRequested: {StatusPendingReview, "RevisionRequested"},
	StatusInProgress:        {StatusPendingMeetingConfirmation, "InProgress"},
}

var transitions = map[Status][]Status{
	StatusRequested:                  {StatusPendingReview, StatusPendingMeetingConfirmation, StatusCancelled},
	StatusPendingReview:              {StatusPendingMeetingConfirmation, StatusRejectedByExpert, StatusCancelled},
	StatusPendingMeetingConfirmation: {StatusCompleted, StatusCancelled},
}

// ParseStatus accepts the snake_case API tokens, case-insensitively.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusTable[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// ParseWireStatus accepts the record store's PascalCase names as well as
// snake_case tokens.
func ParseWireStatus(value string) (Status, error) {
	value = strings.TrimSpace(value)
	for status, info := range statusTable {
		if strings.EqualFold(info.wire, value) {
			return status, nil
		}
	}
	return ParseStatus(value)
}

func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Canonical maps legacy aliases onto the canonical state. Unknown values
// map to themselves and never satisfy any transition.
func (s Status) Canonical() Status {
	if info, ok := statusTable[s]; ok {
		return info.canonical
	}
	return s
}

func (s Status) IsLegacy() bool {
	info, ok := statusTable[s]
	return ok && info.canonical != s
}

// WireName is the record store spelling of the status.
func (s Status) WireName() string {
	if info, ok := statusTable[s]; ok {
		return info.wire
	}
	return string(s)
}

func (s Status) IsTerminal() bool {
	if !s.Valid() {
		return false
	}
	_, ok := transitions[s.Canonical()]
	return !ok
}

// CanTransition reports whether from -> to is an edge of the lifecycle
// graph. Self edges are never valid.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	for _, next := range transitions[from.Canonical()] {
		if next == to.Canonical() {
			return true
		}
	}
	return false
}

// AllowedTargets lists the canonical states reachable from s.
func AllowedTargets(s Status) []Status {
	next := transitions[s.Canonical()]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanonicalStatuses lists the six canonical lifecycle states.
func CanonicalStatuses() []Status {
	return []Status{
		StatusRequested,
		StatusPendingReview,
		StatusPendingMeetingConfirmation,
		StatusCompleted,
		StatusCancelled,
		StatusRejectedByExpert,
	}
}
