package recordstore

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
)

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// wireTime accepts timestamps with or without a zone. Zone-less values are
// read as UTC.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range wireTimeLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t *wireTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	value := t.Time
	return &value
}

type customerWire struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          *string  `json:"phone"`
	Address        *string  `json:"address"`
	AccountCreated wireTime `json:"account_created"`
	IsActive       bool     `json:"is_active"`
}

func (w customerWire) toDomain() *customerdomain.Customer {
	return &customerdomain.Customer{
		ID:             w.ID,
		Name:           w.Name,
		Email:          w.Email,
		Phone:          deref(w.Phone),
		Address:        deref(w.Address),
		AccountCreated: w.AccountCreated.Time,
		IsActive:       w.IsActive,
	}
}

type createCustomerWire struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type updateCustomerWire struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type serviceRequestWire struct {
	ID                   int64     `json:"id"`
	CustomerID           int64     `json:"customer_id"`
	ServiceType          string    `json:"service_type"`
	Title                string    `json:"title"`
	Description          *string   `json:"description"`
	FileName             *string   `json:"file_name"`
	Status               string    `json:"status"`
	CreatedDate          wireTime  `json:"created_date"`
	DueDate              *wireTime `json:"due_date"`
	AssignedSpecialistID *int64    `json:"assigned_specialist_id"`
	Priority             *string   `json:"priority"`
	Paid                 bool      `json:"paid"`
}

func (w serviceRequestWire) toDomain() *srdomain.ServiceRequest {
	serviceType, err := srdomain.ParseServiceType(w.ServiceType)
	if err != nil {
		serviceType = srdomain.ServiceType(strings.ToLower(strings.TrimSpace(w.ServiceType)))
	}
	status, err := srdomain.ParseWireStatus(w.Status)
	if err != nil {
		// unknown values are kept so the transition check rejects them
		status = srdomain.Status(strings.TrimSpace(w.Status))
	}
	priority := strings.ToLower(strings.TrimSpace(deref(w.Priority)))
	if priority == "" {
		priority = srdomain.DefaultPriority
	}
	return &srdomain.ServiceRequest{
		ID:                   w.ID,
		CustomerID:           w.CustomerID,
		ServiceType:          serviceType,
		Title:                w.Title,
		Description:          w.Description,
		FileName:             w.FileName,
		Status:               status,
		CreatedAt:            w.CreatedDate.Time,
		DueDate:              w.DueDate.ptr(),
		AssignedSpecialistID: w.AssignedSpecialistID,
		Priority:             priority,
		Paid:                 w.Paid,
	}
}

type createServiceRequestWire struct {
	CustomerID  int64      `json:"customerId"`
	ServiceType string     `json:"serviceType"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	FileName    *string    `json:"fileName"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    string     `json:"priority"`
}

type statusWire struct {
	Status string `json:"status"`
}

type paidWire struct {
	Paid bool `json:"paid"`
}

type feedbackWire struct {
	ID             int64    `json:"id"`
	RequestID      int64    `json:"request_id"`
	FeedbackText   string   `json:"feedback_text"`
	RevisionNeeded bool     `json:"revision_needed"`
	CreatedDate    wireTime `json:"created_date"`
}

func (w feedbackWire) toDomain() srdomain.Feedback {
	feedbackType := srdomain.FeedbackTypeGeneral
	if w.RevisionNeeded {
		feedbackType = srdomain.FeedbackTypeRevision
	}
	return srdomain.Feedback{
		ID:             w.ID,
		RequestID:      w.RequestID,
		Content:        w.FeedbackText,
		FeedbackType:   feedbackType,
		RevisionNeeded: w.RevisionNeeded,
		CreatedAt:      w.CreatedDate.Time,
	}
}

type createFeedbackWire struct {
	RequestID      int64  `json:"requestId"`
	FeedbackText   string `json:"feedbackText"`
	RevisionNeeded bool   `json:"revisionNeeded"`
}

type paymentWire struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	ServiceRequestID int64           `json:"service_request_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentStatus    string          `json:"payment_status"`
	PaymentDate      wireTime        `json:"payment_date"`
	TransactionID    string          `json:"transaction_id"`
}

func (w paymentWire) toDomain() *paymentdomain.Payment {
	method, err := paymentdomain.ParseMethod(w.PaymentMethod)
	if err != nil {
		method = paymentdomain.Method(strings.TrimSpace(w.PaymentMethod))
	}
	return &paymentdomain.Payment{
		ID:               w.ID,
		CustomerID:       w.CustomerID,
		ServiceRequestID: w.ServiceRequestID,
		Amount:           w.Amount,
		Method:           method,
		Status:           paymentdomain.ParseStatus(w.PaymentStatus),
		TransactionRef:   w.TransactionID,
		PaidAt:           w.PaymentDate.Time,
	}
}

type createPaymentWire struct {
	CustomerID       int64       `json:"customerId"`
	ServiceRequestID int64       `json:"serviceRequestId"`
	Amount           json.Number `json:"amount"`
	PaymentMethod    string      `json:"paymentMethod"`
}

type transactionWire struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	TransactionType  string          `json:"transaction_type"`
	Date             wireTime        `json:"date"`
	PaymentID        *int64          `json:"payment_id"`
	ServiceRequestID *int64          `json:"service_request_id"`
}

func (w transactionWire) toDomain() paymentdomain.Transaction {
	return paymentdomain.Transaction{
		ID:               w.ID,
		CustomerID:       w.CustomerID,
		Amount:           w.Amount,
		Type:             paymentdomain.ParseTransactionType(w.TransactionType),
		Description:      w.Description,
		PaymentID:        positiveID(w.PaymentID),
		ServiceRequestID: positiveID(w.ServiceRequestID),
		Date:             w.Date.Time,
	}
}

type createTransactionWire struct {
	CustomerID       int64       `json:"customerId"`
	Description      string      `json:"description"`
	Amount           json.Number `json:"amount"`
	TransactionType  string      `json:"transactionType"`
	PaymentID        *int64      `json:"paymentId,omitempty"`
	ServiceRequestID *int64      `json:"serviceRequestId,omitempty"`
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// positiveID drops the zero payment reference some record store versions
// write before the payment row has an identity.
func positiveID(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	value := *id
	return &value
}
