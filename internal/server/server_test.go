package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/mutrapro/internal/config"
	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
	"github.com/smallbiznis/mutrapro/internal/idempotency"
	"github.com/smallbiznis/mutrapro/internal/observability"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCustomers struct {
	customers map[int64]*customerdomain.Customer
}

func (f *fakeCustomers) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, customerdomain.ErrInvalidName
	}
	c := &customerdomain.Customer{ID: int64(len(f.customers) + 1), Name: req.Name, Email: req.Email}
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeCustomers) GetByID(ctx context.Context, id int64) (*customerdomain.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, customerdomain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCustomers) Update(ctx context.Context, req customerdomain.UpdateCustomerRequest) (*customerdomain.Customer, error) {
	c, ok := f.customers[req.ID]
	if !ok {
		return nil, customerdomain.ErrNotFound
	}
	c.Name = req.Name
	return c, nil
}

type fakeRequests struct {
	transitionErr error
	items         map[int64][]srdomain.ServiceRequest
	lastSubmit    srdomain.SubmitRequest
}

func (f *fakeRequests) Submit(ctx context.Context, req srdomain.SubmitRequest) (*srdomain.ServiceRequest, error) {
	f.lastSubmit = req
	return &srdomain.ServiceRequest{ID: 11, CustomerID: req.CustomerID, Title: req.Title, Status: srdomain.StatusPending}, nil
}

func (f *fakeRequests) Get(ctx context.Context, id int64) (*srdomain.ServiceRequest, error) {
	return nil, srdomain.ErrNotFound
}

func (f *fakeRequests) ListByCustomer(ctx context.Context, customerID int64) ([]srdomain.ServiceRequest, error) {
	return f.items[customerID], nil
}

func (f *fakeRequests) Transition(ctx context.Context, id int64, target string) (*srdomain.ServiceRequest, error) {
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	return &srdomain.ServiceRequest{ID: id, Status: srdomain.Status(target)}, nil
}

func (f *fakeRequests) SubmitFeedback(ctx context.Context, req srdomain.SubmitFeedbackRequest) (*srdomain.Feedback, error) {
	return &srdomain.Feedback{ID: 5, RequestID: req.RequestID, Content: req.Content}, nil
}

func (f *fakeRequests) ListFeedback(ctx context.Context, requestID int64) ([]srdomain.Feedback, error) {
	return nil, nil
}

func (f *fakeRequests) ListFeedbackByCustomer(ctx context.Context, customerID int64) ([]srdomain.Feedback, error) {
	return nil, nil
}

type fakePayments struct {
	err     error
	lastReq paymentdomain.CreatePaymentRequest
	txs     []paymentdomain.Transaction
}

func (f *fakePayments) CreatePayment(ctx context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.Payment, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, paymentdomain.ErrInvalidAmount
	}
	return &paymentdomain.Payment{ID: 99, CustomerID: req.CustomerID, ServiceRequestID: req.ServiceRequestID, Amount: amount}, nil
}

func (f *fakePayments) ListTransactions(ctx context.Context, customerID int64) ([]paymentdomain.Transaction, error) {
	return f.txs, nil
}

func (f *fakePayments) GetTransaction(ctx context.Context, customerID, transactionID int64) (*paymentdomain.Transaction, error) {
	for i := range f.txs {
		if f.txs[i].ID == transactionID && f.txs[i].CustomerID == customerID {
			return &f.txs[i], nil
		}
	}
	return nil, paymentdomain.ErrNotFound
}

type fakeTasks struct {
	requeued []snowflake.ID
	filter   paymentdomain.ListTaskFilter
}

func (f *fakeTasks) ListTasks(ctx context.Context, filter paymentdomain.ListTaskFilter) ([]*paymentdomain.ReconciliationTask, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeTasks) RequeueTask(ctx context.Context, id snowflake.ID) error {
	f.requeued = append(f.requeued, id)
	return nil
}

func (f *fakeTasks) ProcessDue(ctx context.Context) (int, error) {
	return 0, nil
}

type testServer struct {
	engine    *gin.Engine
	customers *fakeCustomers
	requests  *fakeRequests
	payments  *fakePayments
	tasks     *fakeTasks
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		engine: NewEngine(observability.Config{}, nil),
		customers: &fakeCustomers{customers: map[int64]*customerdomain.Customer{
			1: {ID: 1, Name: "Ana", Email: "ana@example.com"},
		}},
		requests: &fakeRequests{items: map[int64][]srdomain.ServiceRequest{}},
		payments: &fakePayments{},
		tasks:    &fakeTasks{},
	}
	NewServer(ServerParams{
		Gin:         ts.engine,
		Cfg:         cfg,
		Log:         zap.NewNop(),
		CustomerSvc: ts.customers,
		RequestSvc:  ts.requests,
		PaymentSvc:  ts.payments,
		TaskSvc:     ts.tasks,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateCustomer(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	w := ts.do(t, http.MethodPost, "/customers", `{"name":"Bo","email":"bo@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/customers", `{"name":"  ","email":"bo@example.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "name", payload.Errors[0].Field)
}

func TestGetCustomerNotFound(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	w := ts.do(t, http.MethodGet, "/customers/42", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)

	w = ts.do(t, http.MethodGet, "/customers/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitRequestJSON(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	w := ts.do(t, http.MethodPost, "/requests", `{"customer_id":1,"service_type":"transcription","title":"Song"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(1), ts.requests.lastSubmit.CustomerID)
	assert.Equal(t, "Song", ts.requests.lastSubmit.Title)
	assert.Nil(t, ts.requests.lastSubmit.Attachment)
}

func TestTransitionConflict(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.requests.transitionErr = &srdomain.InvalidTransitionError{From: srdomain.StatusCompleted, To: srdomain.StatusPending}

	w := ts.do(t, http.MethodPut, "/requests/3/status", `{"status":"pending"}`, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, w).Type)
}

func TestListRequestsEmpty(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	w := ts.do(t, http.MethodGet, "/requests/customer/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	legacy := newTestServer(t, config.Config{LegacyEmptyList404: true})
	w = legacy.do(t, http.MethodGet, "/requests/customer/1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePaymentAmountForms(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	w := ts.do(t, http.MethodPost, "/payments",
		`{"customer_id":1,"service_request_id":3,"amount":150.50,"payment_method":"card"}`,
		map[string]string{idempotencyHeader: "key-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "150.50", ts.payments.lastReq.Amount)
	assert.Equal(t, "key-1", ts.payments.lastReq.IdempotencyKey)
	assert.Equal(t, "card", ts.payments.lastReq.Method)

	w = ts.do(t, http.MethodPost, "/payments",
		`{"customer_id":1,"service_request_id":3,"amount":"20","payment_method":"cash"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "20", ts.payments.lastReq.Amount)
	assert.Empty(t, ts.payments.lastReq.IdempotencyKey)
}

func TestCreatePaymentErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		code   string
	}{
		{"already paid", paymentdomain.ErrAlreadyPaid, http.StatusConflict, "conflict", "already_paid"},
		{"rate limited", paymentdomain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "rate_limited"},
		{"key mismatch", idempotency.ErrKeyMismatch, http.StatusUnprocessableEntity, "validation_error", idempotency.ErrKeyMismatch.Error()},
		{"in flight", idempotency.ErrInFlight, http.StatusConflict, "conflict", "idempotency_in_flight"},
		{"outcome unknown", idempotency.ErrOutcomeUnknown, http.StatusConflict, "conflict", "idempotency_outcome_unknown"},
		{"timeout", fmt.Errorf("create payment: %w", recordstore.ErrTimeout), http.StatusGatewayTimeout, "upstream_timeout", "upstream_timeout"},
		{"upstream 500", &recordstore.UpstreamError{Op: "create_payment", StatusCode: 500}, http.StatusBadGateway, "upstream_error", "upstream_500"},
		{"upstream 400", &recordstore.UpstreamError{Op: "create_payment", StatusCode: 400}, http.StatusUnprocessableEntity, "upstream_rejected", "upstream_400"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, config.Config{})
			ts.payments.err = tc.err

			w := ts.do(t, http.MethodPost, "/payments",
				`{"customer_id":1,"service_request_id":3,"amount":"10","payment_method":"card"}`, nil)
			require.Equal(t, tc.status, w.Code)
			payload := decodeError(t, w)
			assert.Equal(t, tc.typ, payload.Type)
			assert.Equal(t, tc.code, payload.Code)
		})
	}
}

func TestTransactionReceiptWithoutRenderer(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	w := ts.do(t, http.MethodGet, "/transactions/1/7/receipt", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTranscriptionUnavailable(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	w := ts.do(t, http.MethodGet, "/transcriptions/midi/x.mid", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminTasks(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	w := ts.do(t, http.MethodGet, "/admin/reconciliation/tasks?status=dead&kind=mark_paid&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	assert.Equal(t, paymentdomain.TaskStatusDead, ts.tasks.filter.Status)
	assert.Equal(t, paymentdomain.TaskKindMarkPaid, ts.tasks.filter.Kind)
	assert.Equal(t, 5, ts.tasks.filter.Limit)

	w = ts.do(t, http.MethodGet, "/admin/reconciliation/tasks?status=weird", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/admin/reconciliation/tasks/1234/requeue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ts.tasks.requeued, 1)
	assert.Equal(t, snowflake.ID(1234), ts.tasks.requeued[0])
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	w := ts.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}
