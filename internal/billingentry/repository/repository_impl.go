package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sphera-erp/sphera/internal/billingentry/domain"
	"github.com/sphera-erp/sphera/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.BillingEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*domain.BillingEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []*domain.BillingEntry
	err := db.WithContext(ctx).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListEntryFilter, page pagination.Pagination) ([]*domain.BillingEntry, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.BillingEntry{}).
		Where("org_id = ?", orgID)
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.ServiceID != 0 {
		stmt = stmt.Where("service_id = ?", filter.ServiceID)
	}
	if filter.From != nil {
		stmt = stmt.Where("service_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("service_date <= ?", *filter.To)
	}
	if filter.IsBillable != nil {
		stmt = stmt.Where("is_billable = ?", *filter.IsBillable)
	}
	if filter.Uninvoiced {
		stmt = stmt.Where("invoice_id IS NULL")
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.ID != "" {
			id, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return nil, err
			}
			stmt = stmt.Where("id > ?", id)
		}
	}

	var entries []*domain.BillingEntry
	err := stmt.
		Order("service_date asc, id asc").
		Limit(page.PageSize + 1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) MarkInvoiced(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.BillingEntry{}).
		Where("org_id = ? AND id IN ? AND invoice_id IS NULL", orgID, ids).
		Updates(map[string]any{
			"invoice_id": invoiceID,
			"updated_at": now,
		}).Error
}
