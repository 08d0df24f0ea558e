package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// SummaryData is everything the closing summary document shows. All amounts
// arrive pre-formatted so the document layer stays locale-agnostic.
type SummaryData struct {
	OrgName     string
	SessionID   string
	GeneratedAt string
	Rows        []SummaryRow
	GrandTotal  string
}

type SummaryRow struct {
	ClientName string
	InvoiceID  string
	Amount     string
	ClosedAt   string
}

func (p *PDFProvider) GenerateClosingSummary(ctx context.Context, data SummaryData) (io.Reader, error) {
	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("closing summary has no closed groups")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(8, "Billing closure summary", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.OrgName, props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)

	m.AddRow(15,
		col.New(12).Add(
			text.New("Session: "+data.SessionID, props.Text{Top: 0, Size: 9}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 4, Size: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(5, "Client", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Invoice", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Closed at", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, row := range data.Rows {
		m.AddRow(12,
			text.NewCol(5, row.ClientName, props.Text{Size: 9}),
			text.NewCol(3, row.InvoiceID, props.Text{Size: 9}),
			text.NewCol(2, row.ClosedAt, props.Text{Size: 9}),
			text.NewCol(2, row.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.GrandTotal, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
