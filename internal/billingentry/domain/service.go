package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sphera-erp/sphera/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListEntryRequest struct {
	PageToken  string
	PageSize   int
	ClientID   string
	ServiceID  string
	From       *time.Time
	To         *time.Time
	IsBillable *bool
	Uninvoiced bool
}

type ListEntryFilter struct {
	ClientID   snowflake.ID
	ServiceID  snowflake.ID
	From       *time.Time
	To         *time.Time
	IsBillable *bool
	Uninvoiced bool
}

type ListEntryResponse struct {
	pagination.PageInfo
	Entries []BillingEntry `json:"entries"`
}

type CreateEntryRequest struct {
	ClientID    string
	ServiceID   string
	Quantity    decimal.Decimal
	ServiceDate time.Time
	Notes       string
	IsBillable  bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *BillingEntry) error
	FindByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*BillingEntry, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListEntryFilter, page pagination.Pagination) ([]*BillingEntry, error)
	MarkInvoiced(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID string, now time.Time) error
}

type Service interface {
	Create(context.Context, CreateEntryRequest) (BillingEntry, error)
	List(context.Context, ListEntryRequest) (ListEntryResponse, error)
	GetByIDs(ctx context.Context, ids []snowflake.ID) ([]BillingEntry, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidService      = errors.New("invalid_service")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidServiceDate  = errors.New("invalid_service_date")
	ErrNotFound            = errors.New("not_found")
)
