package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodEWallet      Method = "e_wallet"
)

func ParseMethod(value string) (Method, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch Method(normalized) {
	case MethodCash, MethodCard, MethodBankTransfer, MethodEWallet:
		return Method(normalized), nil
	case "ewallet":
		return MethodEWallet, nil
	case "credit_card", "debit_card":
		return MethodCard, nil
	default:
		return "", ErrInvalidMethod
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// ParseStatus accepts "Completed" as sent by the record store.
func ParseStatus(value string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	case StatusRefunded:
		return StatusRefunded
	default:
		return StatusPending
	}
}

// Payment is immutable once created.
type Payment struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	ServiceRequestID int64           `json:"service_request_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           Method          `json:"method"`
	Status           Status          `json:"status"`
	TransactionRef   string          `json:"transaction_ref,omitempty"`
	PaidAt           time.Time       `json:"paid_at"`
}

type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypeCredit  TransactionType = "credit"
)

func ParseTransactionType(value string) TransactionType {
	switch TransactionType(strings.ToLower(strings.TrimSpace(value))) {
	case TransactionTypeRefund:
		return TransactionTypeRefund
	case TransactionTypeCredit:
		return TransactionTypeCredit
	default:
		return TransactionTypePayment
	}
}

// WireName is the record store spelling, e.g. "Payment".
func (t TransactionType) WireName() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Transaction is an append-only ledger line for a customer.
type Transaction struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	Amount           decimal.Decimal `json:"amount"`
	Type             TransactionType `json:"type"`
	Description      string          `json:"description"`
	PaymentID        *int64          `json:"payment_id,omitempty"`
	ServiceRequestID *int64          `json:"service_request_id,omitempty"`
	Date             time.Time       `json:"date"`
}

// References reports whether the transaction was appended for paymentID.
func (t Transaction) References(paymentID int64) bool {
	return t.PaymentID != nil && *t.PaymentID == paymentID
}

// PaymentDescription is the ledger description written for a payment on
// requestID.
func PaymentDescription(requestID int64) string {
	return fmt.Sprintf("Payment for service request %d", requestID)
}

// Covers reports whether the transaction already accounts for payment. Some
// record store versions append the ledger line themselves without a payment
// reference, which is matched on type, amount and request.
func (t Transaction) Covers(payment Payment) bool {
	if t.References(payment.ID) {
		return true
	}
	if t.PaymentID != nil || t.Type != TransactionTypePayment || !t.Amount.Equal(payment.Amount) {
		return false
	}
	if t.ServiceRequestID != nil {
		return *t.ServiceRequestID == payment.ServiceRequestID
	}
	return strings.TrimSpace(t.Description) == PaymentDescription(payment.ServiceRequestID)
}
