package recordstore

import (
	"context"
	"net/http"

	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
)

func (c *Client) CreateServiceRequest(ctx context.Context, rec srdomain.CreateRecord) (*srdomain.ServiceRequest, error) {
	var out serviceRequestWire
	found, err := c.do(ctx, call{
		op:     "create_service_request",
		method: http.MethodPost,
		path:   "/requests",
		body: createServiceRequestWire{
			CustomerID:  rec.CustomerID,
			ServiceType: rec.ServiceType.WireName(),
			Title:       rec.Title,
			Description: rec.Description,
			FileName:    rec.FileName,
			DueDate:     rec.DueDate,
			Priority:    rec.Priority,
		},
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	return out.toDomain(), nil
}

func (c *Client) GetServiceRequest(ctx context.Context, id int64) (*srdomain.ServiceRequest, error) {
	var out serviceRequestWire
	found, err := c.do(ctx, call{
		op:     "get_service_request",
		method: http.MethodGet,
		path:   idPath("/requests/%d", id),
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	return out.toDomain(), nil
}

func (c *Client) ListServiceRequestsByCustomer(ctx context.Context, customerID int64) ([]srdomain.ServiceRequest, error) {
	var out []serviceRequestWire
	found, err := c.do(ctx, call{
		op:     "list_service_requests",
		method: http.MethodGet,
		path:   idPath("/requests/customer/%d", customerID),
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	items := make([]srdomain.ServiceRequest, 0, len(out))
	for _, item := range out {
		items = append(items, *item.toDomain())
	}
	return items, nil
}

// UpdateServiceRequestStatus writes the record store spelling of status.
// It reports false when the request does not exist.
func (c *Client) UpdateServiceRequestStatus(ctx context.Context, id int64, status srdomain.Status) (bool, error) {
	return c.do(ctx, call{
		op:     "update_service_request_status",
		method: http.MethodPut,
		path:   idPath("/requests/%d/status", id),
		body:   statusWire{Status: status.WireName()},
	}, nil)
}

// MarkServiceRequestPaid sets paid=true. Repeating it is harmless.
func (c *Client) MarkServiceRequestPaid(ctx context.Context, id int64) (bool, error) {
	return c.do(ctx, call{
		op:     "mark_paid",
		method: http.MethodPatch,
		path:   idPath("/requests/%d", id),
		body:   paidWire{Paid: true},
	}, nil)
}

func (c *Client) CreateFeedback(ctx context.Context, rec srdomain.FeedbackRecord) (*srdomain.Feedback, error) {
	var out feedbackWire
	found, err := c.do(ctx, call{
		op:     "create_feedback",
		method: http.MethodPost,
		path:   "/feedback",
		body: createFeedbackWire{
			RequestID:      rec.RequestID,
			FeedbackText:   rec.Content,
			RevisionNeeded: rec.RevisionNeeded,
		},
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	feedback := out.toDomain()
	return &feedback, nil
}

func (c *Client) ListFeedbackByRequest(ctx context.Context, requestID int64) ([]srdomain.Feedback, error) {
	var out []feedbackWire
	found, err := c.do(ctx, call{
		op:     "list_feedback",
		method: http.MethodGet,
		path:   idPath("/feedback/request/%d", requestID),
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	items := make([]srdomain.Feedback, 0, len(out))
	for _, item := range out {
		items = append(items, item.toDomain())
	}
	return items, nil
}
