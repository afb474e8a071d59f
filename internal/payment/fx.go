package payment

import (
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/payment/repository"
	paymentservice "github.com/smallbiznis/mutrapro/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(paymentservice.NewService),
	fx.Provide(
		func(s *paymentservice.Service) paymentdomain.Service { return s },
		func(s *paymentservice.Service) paymentdomain.Reconciler { return s },
		func(s *paymentservice.Service) paymentdomain.TaskService { return s },
	),
)
