package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListServiceRequest struct {
	Active *bool
}

type ListServiceResponse struct {
	Services []CatalogService `json:"services"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, svc *CatalogService) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*CatalogService, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, active *bool) ([]*CatalogService, error)
}

type Service interface {
	Create(ctx context.Context, name, description string) (CatalogService, error)
	List(ctx context.Context, req ListServiceRequest) (ListServiceResponse, error)
	GetByID(ctx context.Context, id string) (CatalogService, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
