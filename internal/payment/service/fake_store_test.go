package service

import (
	"context"
	"sync"

	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
)

// fakeStore mimics the record store, including its habit of writing an
// unreferenced ledger line while creating a payment.
type fakeStore struct {
	mu sync.Mutex

	requests     map[int64]*srdomain.ServiceRequest
	payments     []paymentdomain.Payment
	transactions []paymentdomain.Transaction

	markPaidCalls      int
	createPaymentCalls int

	writeLegacyTransaction bool
	createPaymentErr       error
	markPaidErr            error
	createTransactionErr   error
	createTransactionGone  bool
	commitThenFail         error
	onCreatePayment        func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: map[int64]*srdomain.ServiceRequest{}}
}

func (f *fakeStore) addRequest(id, customerID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[id] = &srdomain.ServiceRequest{
		ID:          id,
		CustomerID:  customerID,
		ServiceType: srdomain.ServiceTypeTranscription,
		Title:       "Lead sheet",
		Status:      srdomain.StatusRequested,
		Priority:    srdomain.DefaultPriority,
	}
}

func (f *fakeStore) paymentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payments)
}

func (f *fakeStore) paid(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id] != nil && f.requests[id].Paid
}

func (f *fakeStore) setMarkPaidErr(err error) {
	f.mu.Lock()
	f.markPaidErr = err
	f.mu.Unlock()
}

func (f *fakeStore) transactionsFor(customerID int64) []paymentdomain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []paymentdomain.Transaction
	for _, item := range f.transactions {
		if item.CustomerID == customerID {
			out = append(out, item)
		}
	}
	return out
}

func (f *fakeStore) GetServiceRequest(ctx context.Context, id int64) (*srdomain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *req
	return &copied, nil
}

func (f *fakeStore) MarkServiceRequestPaid(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markPaidCalls++
	if f.markPaidErr != nil {
		return false, f.markPaidErr
	}
	req, ok := f.requests[id]
	if !ok {
		return false, nil
	}
	req.Paid = true
	return true, nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, rec paymentdomain.PaymentRecord) (*paymentdomain.Payment, error) {
	f.mu.Lock()
	f.createPaymentCalls++
	if f.createPaymentErr != nil {
		f.mu.Unlock()
		return nil, f.createPaymentErr
	}
	payment := paymentdomain.Payment{
		ID:               int64(100 + len(f.payments)),
		CustomerID:       rec.CustomerID,
		ServiceRequestID: rec.ServiceRequestID,
		Amount:           rec.Amount,
		Method:           rec.Method,
		Status:           paymentdomain.StatusCompleted,
		TransactionRef:   "ref",
	}
	f.payments = append(f.payments, payment)
	if f.commitThenFail != nil {
		err := f.commitThenFail
		f.commitThenFail = nil
		f.mu.Unlock()
		return nil, err
	}
	if f.writeLegacyTransaction {
		f.transactions = append(f.transactions, paymentdomain.Transaction{
			ID:          int64(len(f.transactions) + 1),
			CustomerID:  rec.CustomerID,
			Amount:      rec.Amount,
			Type:        paymentdomain.TransactionTypePayment,
			Description: paymentdomain.PaymentDescription(rec.ServiceRequestID),
		})
	}
	hook := f.onCreatePayment
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &payment, nil
}

func (f *fakeStore) CreateTransaction(ctx context.Context, rec paymentdomain.TransactionRecord) (*paymentdomain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTransactionErr != nil {
		return nil, f.createTransactionErr
	}
	if f.createTransactionGone {
		return nil, nil
	}
	item := paymentdomain.Transaction{
		ID:               int64(len(f.transactions) + 1),
		CustomerID:       rec.CustomerID,
		Amount:           rec.Amount,
		Type:             rec.Type,
		Description:      rec.Description,
		PaymentID:        rec.PaymentID,
		ServiceRequestID: rec.ServiceRequestID,
	}
	f.transactions = append(f.transactions, item)
	return &item, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, customerID int64) ([]paymentdomain.Transaction, error) {
	return f.transactionsFor(customerID), nil
}

var errUnavailable = &recordstore.UpstreamError{Op: "mark_paid", StatusCode: 503}
