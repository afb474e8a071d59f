package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceTypeTranscription ServiceType = "transcription"
	ServiceTypeArrangement   ServiceType = "arrangement"
	ServiceTypeRecording     ServiceType = "recording"
)

func ParseServiceType(value string) (ServiceType, error) {
	switch ServiceType(strings.ToLower(strings.TrimSpace(value))) {
	case ServiceTypeTranscription:
		return ServiceTypeTranscription, nil
	case ServiceTypeArrangement:
		return ServiceTypeArrangement, nil
	case ServiceTypeRecording:
		return ServiceTypeRecording, nil
	default:
		return "", ErrInvalidServiceType
	}
}

// WireName is the record store spelling, e.g. "Transcription".
func (t ServiceType) WireName() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

const DefaultPriority = "normal"

func ParsePriority(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return DefaultPriority, nil
	case "low", "normal", "high", "urgent":
		return value, nil
	default:
		return "", ErrInvalidPriority
	}
}

// ServiceRequest is a customer order as held by the record store. Paid only
// ever moves from false to true.
type ServiceRequest struct {
	ID                   int64
	CustomerID           int64
	ServiceType          ServiceType
	Title                string
	Description          *string
	FileName             *string
	Status               Status
	CreatedAt            time.Time
	DueDate              *time.Time
	AssignedSpecialistID *int64
	Priority             string
	Paid                 bool
}

type serviceRequestJSON struct {
	ID                   int64       `json:"id"`
	CustomerID           int64       `json:"customer_id"`
	ServiceType          ServiceType `json:"service_type"`
	Title                string      `json:"title"`
	Description          *string     `json:"description,omitempty"`
	FileName             *string     `json:"file_name,omitempty"`
	Status               Status      `json:"status"`
	LegacyStatus         Status      `json:"legacy_status,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	DueDate              *time.Time  `json:"due_date,omitempty"`
	AssignedSpecialistID *int64      `json:"assigned_specialist_id,omitempty"`
	Priority             string      `json:"priority"`
	Paid                 bool        `json:"paid"`
}

// MarshalJSON exposes the canonical status and, when the stored value is a
// legacy alias, the alias itself as legacy_status.
func (r ServiceRequest) MarshalJSON() ([]byte, error) {
	out := serviceRequestJSON{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		ServiceType:          r.ServiceType,
		Title:                r.Title,
		Description:          r.Description,
		FileName:             r.FileName,
		Status:               r.Status.Canonical(),
		CreatedAt:            r.CreatedAt,
		DueDate:              r.DueDate,
		AssignedSpecialistID: r.AssignedSpecialistID,
		Priority:             r.Priority,
		Paid:                 r.Paid,
	}
	if r.Status.IsLegacy() {
		out.LegacyStatus = r.Status
	}
	return json.Marshal(out)
}

type FeedbackType string

const (
	FeedbackTypeRevision FeedbackType = "revision"
	FeedbackTypeGeneral  FeedbackType = "general"
)

func ParseFeedbackType(value string) (FeedbackType, error) {
	switch FeedbackType(strings.ToLower(strings.TrimSpace(value))) {
	case "", FeedbackTypeRevision:
		return FeedbackTypeRevision, nil
	case FeedbackTypeGeneral:
		return FeedbackTypeGeneral, nil
	default:
		return "", ErrInvalidFeedbackType
	}
}

type Feedback struct {
	ID             int64        `json:"id"`
	RequestID      int64        `json:"request_id"`
	Content        string       `json:"content"`
	FeedbackType   FeedbackType `json:"feedback_type"`
	RevisionNeeded bool         `json:"revision_needed"`
	CreatedAt      time.Time    `json:"created_at"`
}
