package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders operator-facing documents. The closing summary is the
// only document the closing engine produces; invoices themselves live on
// the remote gateway.
type Provider interface {
	GenerateClosingSummary(ctx context.Context, data SummaryData) (io.Reader, error)
}

type PDFProvider struct{}

func NewProvider() Provider {
	return &PDFProvider{}
}

var Module = fx.Module("providers.pdf",
	fx.Provide(NewProvider),
)
