package recordstore

import (
	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("recordstore",
	fx.Provide(New),
	fx.Provide(
		func(c *Client) customerdomain.Store { return c },
		func(c *Client) srdomain.RecordStore { return c },
		func(c *Client) paymentdomain.RecordStore { return c },
	),
)
