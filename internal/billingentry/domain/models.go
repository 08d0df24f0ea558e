package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BillingEntry records billable (or explicitly non-billable) service usage
// for a client on a date. Once an invoice has consumed the entry, InvoiceID
// is set and the entry can never enter another closure group.
type BillingEntry struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	ClientID    snowflake.ID    `gorm:"not null;index" json:"client_id"`
	ServiceID   snowflake.ID    `gorm:"not null;index" json:"service_id"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	ServiceDate time.Time       `gorm:"not null;index" json:"service_date"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	// No column default: gorm omits zero-valued fields that carry one,
	// which would flip false to true on insert.
	IsBillable  bool            `gorm:"not null" json:"is_billable"`
	InvoiceID   *string         `gorm:"type:text;index" json:"invoice_id,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (BillingEntry) TableName() string { return "billing_entries" }

// Invoiced reports whether an invoice has already consumed the entry.
func (e BillingEntry) Invoiced() bool { return e.InvoiceID != nil && *e.InvoiceID != "" }
