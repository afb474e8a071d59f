package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
)

func (c *Client) CreatePayment(ctx context.Context, rec paymentdomain.PaymentRecord) (*paymentdomain.Payment, error) {
	var out paymentWire
	found, err := c.do(ctx, call{
		op:     "create_payment",
		method: http.MethodPost,
		path:   "/payments",
		body: createPaymentWire{
			CustomerID:       rec.CustomerID,
			ServiceRequestID: rec.ServiceRequestID,
			Amount:           json.Number(rec.Amount.String()),
			PaymentMethod:    string(rec.Method),
		},
		idempotencyKey: rec.IdempotencyKey,
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	return out.toDomain(), nil
}

func (c *Client) CreateTransaction(ctx context.Context, rec paymentdomain.TransactionRecord) (*paymentdomain.Transaction, error) {
	key := ""
	if rec.PaymentID != nil {
		key = fmt.Sprintf("payment:%d:%s", *rec.PaymentID, rec.Type)
	}
	var out transactionWire
	found, err := c.do(ctx, call{
		op:     "create_transaction",
		method: http.MethodPost,
		path:   "/transactions",
		body: createTransactionWire{
			CustomerID:       rec.CustomerID,
			Description:      rec.Description,
			Amount:           json.Number(rec.Amount.String()),
			TransactionType:  rec.Type.WireName(),
			PaymentID:        rec.PaymentID,
			ServiceRequestID: rec.ServiceRequestID,
		},
		idempotencyKey: key,
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	transaction := out.toDomain()
	return &transaction, nil
}

func (c *Client) ListTransactions(ctx context.Context, customerID int64) ([]paymentdomain.Transaction, error) {
	var out []transactionWire
	found, err := c.do(ctx, call{
		op:     "list_transactions",
		method: http.MethodGet,
		path:   idPath("/transactions/%d", customerID),
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	items := make([]paymentdomain.Transaction, 0, len(out))
	for _, item := range out {
		items = append(items, item.toDomain())
	}
	return items, nil
}
