package recordstore

import (
	"context"
	"net/http"
	"strings"

	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
)

func (c *Client) CreateCustomer(ctx context.Context, req customerdomain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	var out customerWire
	found, err := c.do(ctx, call{
		op:     "create_customer",
		method: http.MethodPost,
		path:   "",
		body: createCustomerWire{
			Name:    strings.TrimSpace(req.Name),
			Email:   strings.TrimSpace(req.Email),
			Phone:   optional(req.Phone),
			Address: optional(req.Address),
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out.toDomain(), nil
}

func (c *Client) GetCustomer(ctx context.Context, id int64) (*customerdomain.Customer, error) {
	var out customerWire
	found, err := c.do(ctx, call{
		op:     "get_customer",
		method: http.MethodGet,
		path:   idPath("/%d", id),
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	return out.toDomain(), nil
}

// UpdateCustomer sends only the fields that are set.
func (c *Client) UpdateCustomer(ctx context.Context, req customerdomain.UpdateCustomerRequest) (*customerdomain.Customer, error) {
	var out customerWire
	found, err := c.do(ctx, call{
		op:     "update_customer",
		method: http.MethodPut,
		path:   idPath("/%d", req.ID),
		body: updateCustomerWire{
			Name:    optional(req.Name),
			Phone:   req.Phone,
			Address: req.Address,
		},
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	return out.toDomain(), nil
}
