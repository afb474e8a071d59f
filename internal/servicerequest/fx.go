package servicerequest

import (
	"github.com/smallbiznis/mutrapro/internal/servicerequest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("servicerequest.service",
	fx.Provide(service.ProvideAttachments),
	fx.Provide(service.New),
)
