package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/mutrapro/internal/observability/context"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/providers/pdf"
)

const idempotencyHeader = "Idempotency-Key"

// amountField accepts a JSON number or a numeric string and keeps the
// literal so no precision is lost before decimal parsing.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountField(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amountField(n.String())
	return nil
}

type createPaymentBody struct {
	CustomerID       int64       `json:"customer_id"`
	ServiceRequestID int64       `json:"service_request_id"`
	Amount           amountField `json:"amount"`
	PaymentMethod    string      `json:"payment_method"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var body createPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	ctx := obscontext.WithCustomerID(c.Request.Context(), formatID(body.CustomerID))
	if key != "" {
		ctx = obscontext.WithIdempotencyKey(ctx, key)
	}

	resp, err := s.paymentSvc.CreatePayment(ctx, paymentdomain.CreatePaymentRequest{
		CustomerID:       body.CustomerID,
		ServiceRequestID: body.ServiceRequestID,
		Amount:           string(body.Amount),
		Method:           body.PaymentMethod,
		IdempotencyKey:   key,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	customerID, err := pathID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := obscontext.WithCustomerID(c.Request.Context(), formatID(customerID))
	items, err := s.paymentSvc.ListTransactions(ctx, customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(s, c, items)
}

func (s *Server) TransactionReceipt(c *gin.Context) {
	customerID, err := pathID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	transactionID, err := pathID(c, "transaction_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if s.receipts == nil {
		AbortWithError(c, ErrUnavailable)
		return
	}

	ctx := obscontext.WithCustomerID(c.Request.Context(), formatID(customerID))
	tx, err := s.paymentSvc.GetTransaction(ctx, customerID, transactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	customer, err := s.customerSvc.GetByID(ctx, customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.ReceiptData{
		ReceiptNumber:   fmt.Sprintf("TX-%d", tx.ID),
		IssuedAt:        time.Now().UTC().Format(dateOnlyLayout),
		CustomerName:    customer.Name,
		CustomerEmail:   customer.Email,
		CustomerAddress: customer.Address,
		TransactionType: tx.Type.WireName(),
		Description:     tx.Description,
		Amount:          tx.Amount.StringFixed(2),
		TransactionDate: tx.Date.Format("2006-01-02 15:04"),
	}
	if tx.PaymentID != nil {
		data.PaymentID = formatID(*tx.PaymentID)
	}
	if tx.ServiceRequestID != nil {
		data.ServiceRequestID = formatID(*tx.ServiceRequestID)
	}

	doc, err := s.receipts.GenerateReceipt(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("receipt-%d.pdf", tx.ID)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}
