package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/sphera-erp/sphera/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, svc *domain.CatalogService) error {
	return db.WithContext(ctx).Create(svc).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.CatalogService, error) {
	var svc domain.CatalogService
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&svc).Error
	if err != nil {
		return nil, err
	}
	if svc.ID == 0 {
		return nil, nil
	}
	return &svc, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, active *bool) ([]*domain.CatalogService, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.CatalogService{}).
		Where("org_id = ?", orgID)
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}

	var services []*domain.CatalogService
	if err := stmt.Order("name asc").Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}
