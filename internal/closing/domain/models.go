package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
)

// MissingPriceBehavior governs what happens when an entry in a group has no
// resolvable active price. The numeric values are part of the gateway wire
// contract.
type MissingPriceBehavior int

const (
	MissingPriceBlock       MissingPriceBehavior = 0
	MissingPriceAllowManual MissingPriceBehavior = 1
)

func (b MissingPriceBehavior) Valid() bool {
	return b == MissingPriceBlock || b == MissingPriceAllowManual
}

type CloseOption string

const (
	CloseWithoutInstallments CloseOption = "without_installments"
	CloseWithInstallments    CloseOption = "with_installments"
)

func (o CloseOption) Valid() bool {
	return o == CloseWithoutInstallments || o == CloseWithInstallments
}

// ClientSummary is the slice of the client record the closing workflow needs.
type ClientSummary struct {
	ID            snowflake.ID `json:"id"`
	Name          string       `json:"name"`
	BillingDueDay *int         `json:"billing_due_day,omitempty"`
}

// MissingPrice records one entry whose (client, service) pair had no active
// price when the group was built. It contributed zero to the group total.
type MissingPrice struct {
	EntryID   snowflake.ID `json:"entry_id"`
	ServiceID snowflake.ID `json:"service_id"`
}

// ClosureGroup is the unit of work for one workflow step: one client's
// unbilled entries and their resolved total. Groups live only for the
// duration of a closing session.
type ClosureGroup struct {
	Client        ClientSummary             `json:"client"`
	Entries       []entrydomain.BillingEntry `json:"entries"`
	TotalAmount   decimal.Decimal           `json:"total_amount"`
	MissingPrices []MissingPrice            `json:"missing_prices,omitempty"`
}

func (g ClosureGroup) EntryIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(g.Entries))
	for _, e := range g.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// Installment is one dated slice of a group total. Amounts carry exactly two
// decimals and the full schedule always sums back to the total to the cent.
type Installment struct {
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// GroupConfig is the operator input collected while a group is presented.
// It resets to defaults every time the workflow moves to another group.
type GroupConfig struct {
	MissingPriceBehavior MissingPriceBehavior `json:"missing_price_behavior"`
	CloseOption          CloseOption          `json:"close_option"`
	InstallmentCount     int                  `json:"installment_count,omitempty"`
	FirstDueDate         *time.Time           `json:"first_due_date,omitempty"`
	OverrideDueDate      *time.Time           `json:"override_due_date,omitempty"`
}

// CloseRequest is the one outbound command per group, submitted to the
// invoice gateway.
type CloseRequest struct {
	ClientID             string               `json:"clientId"`
	IssueDate            time.Time            `json:"issueDate"`
	MissingPriceBehavior MissingPriceBehavior `json:"missingPriceBehavior"`
	TotalAmount          *decimal.Decimal     `json:"totalAmount,omitempty"`
	DueDate              *time.Time           `json:"dueDate,omitempty"`
	Installments         []Installment        `json:"installments,omitempty"`
}

// CloseResult is the gateway acknowledgement for one closed group.
type CloseResult struct {
	InvoiceID string `json:"invoice_id"`
}

type SessionState string

// Sessions exist only once at least one group was built, so the first
// observable state is already presenting.
const (
	StatePresenting SessionState = "presenting"
	StateSubmitting SessionState = "submitting"
	StateDone       SessionState = "done"
	StateCancelled  SessionState = "cancelled"
)
