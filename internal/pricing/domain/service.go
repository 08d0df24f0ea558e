package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreatePriceRequest struct {
	ClientID  string
	ServiceID string
	UnitPrice decimal.Decimal
	StartDate time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, price *ClientServicePrice) error
	DeactivatePair(ctx context.Context, db *gorm.DB, orgID, clientID, serviceID snowflake.ID, now time.Time) error
	FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, clientIDs []snowflake.ID) ([]*ClientServicePrice, error)
}

type Service interface {
	Create(context.Context, CreatePriceRequest) (ClientServicePrice, error)
	// Snapshot loads every active price row for the given clients so callers
	// can resolve prices without further round trips.
	Snapshot(ctx context.Context, clientIDs []snowflake.ID) (Snapshot, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidService      = errors.New("invalid_service")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidStartDate    = errors.New("invalid_start_date")
	ErrPriceNotFound       = errors.New("price_not_found")
)
