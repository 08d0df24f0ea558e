package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sphera-erp/sphera/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, price *domain.ClientServicePrice) error {
	return db.WithContext(ctx).Create(price).Error
}

func (r *repo) DeactivatePair(ctx context.Context, db *gorm.DB, orgID, clientID, serviceID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ClientServicePrice{}).
		Where("org_id = ? AND client_id = ? AND service_id = ? AND is_active = ?", orgID, clientID, serviceID, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now,
		}).Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, clientIDs []snowflake.ID) ([]*domain.ClientServicePrice, error) {
	stmt := db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true)
	if len(clientIDs) > 0 {
		stmt = stmt.Where("client_id IN ?", clientIDs)
	}

	var rows []*domain.ClientServicePrice
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
