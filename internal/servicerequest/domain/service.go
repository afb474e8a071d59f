package domain

import (
	"context"
	"io"
	"time"

	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
)

// CreateRecord is the payload sent to the record store to create a request.
type CreateRecord struct {
	CustomerID  int64
	ServiceType ServiceType
	Title       string
	Description *string
	FileName    *string
	DueDate     *time.Time
	Priority    string
}

type FeedbackRecord struct {
	RequestID      int64
	Content        string
	RevisionNeeded bool
}

// RecordStore is the subset of the record store client the lifecycle
// engine needs. Lookups return nil (or false) with a nil error when the
// record store has no such record.
type RecordStore interface {
	GetCustomer(ctx context.Context, id int64) (*customerdomain.Customer, error)
	CreateServiceRequest(ctx context.Context, rec CreateRecord) (*ServiceRequest, error)
	GetServiceRequest(ctx context.Context, id int64) (*ServiceRequest, error)
	ListServiceRequestsByCustomer(ctx context.Context, customerID int64) ([]ServiceRequest, error)
	UpdateServiceRequestStatus(ctx context.Context, id int64, status Status) (bool, error)
	CreateFeedback(ctx context.Context, rec FeedbackRecord) (*Feedback, error)
	ListFeedbackByRequest(ctx context.Context, requestID int64) ([]Feedback, error)
}

// AttachmentStore persists uploaded artifacts under a caller chosen name.
type AttachmentStore interface {
	Save(ctx context.Context, name string, body io.Reader) (string, error)
	Remove(ctx context.Context, name string) error
}

type Attachment struct {
	Name string
	Body io.Reader
}

type SubmitRequest struct {
	CustomerID  int64
	ServiceType string
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    string
	// FileName references an artifact that was stored out of band.
	FileName   *string
	Attachment *Attachment
}

type SubmitFeedbackRequest struct {
	RequestID    int64
	Content      string
	FeedbackType string
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*ServiceRequest, error)
	Get(ctx context.Context, id int64) (*ServiceRequest, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]ServiceRequest, error)
	Transition(ctx context.Context, id int64, target string) (*ServiceRequest, error)
	SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) (*Feedback, error)
	ListFeedback(ctx context.Context, requestID int64) ([]Feedback, error)
	ListFeedbackByCustomer(ctx context.Context, customerID int64) ([]Feedback, error)
}
