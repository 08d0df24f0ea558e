package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Client is a billable client of the organization. BillingDueDay is the
// day of month the client prefers invoices to fall due; nil means no
// preference and the closing date's own day is used.
type Client struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID      `gorm:"not null;index" json:"organization_id"`
	Name          string            `gorm:"not null" json:"name"`
	Email         string            `gorm:"not null" json:"email"`
	Document      string            `gorm:"type:text" json:"document,omitempty"`
	BillingDueDay *int              `gorm:"column:billing_due_day" json:"billing_due_day,omitempty"`
	Active        bool              `gorm:"not null" json:"active"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
