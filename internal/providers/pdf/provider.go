package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders customer facing documents.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(func() Provider { return &PDFProvider{} }),
)

type PDFProvider struct{}
