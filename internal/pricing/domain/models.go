package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ClientServicePrice is one row of the negotiated price list. At most one
// active row applies to a (client, service) pair at any point in time.
type ClientServicePrice struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	ClientID  snowflake.ID    `gorm:"not null;index:idx_client_service_prices_pair" json:"client_id"`
	ServiceID snowflake.ID    `gorm:"not null;index:idx_client_service_prices_pair" json:"service_id"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	StartDate time.Time       `gorm:"not null" json:"start_date"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ClientServicePrice) TableName() string { return "client_service_prices" }
