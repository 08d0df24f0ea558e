package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sphera-erp/sphera/internal/catalog/domain"
	"github.com/sphera-erp/sphera/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, name, description string) (domain.CatalogService, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.CatalogService{}, domain.ErrInvalidOrganization
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.CatalogService{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	svc := domain.CatalogService{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &svc); err != nil {
		return domain.CatalogService{}, err
	}
	return svc, nil
}

func (s *Service) List(ctx context.Context, req domain.ListServiceRequest) (domain.ListServiceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListServiceResponse{}, domain.ErrInvalidOrganization
	}

	items, err := s.repo.List(ctx, s.db, orgID, req.Active)
	if err != nil {
		return domain.ListServiceResponse{}, err
	}

	services := make([]domain.CatalogService, 0, len(items))
	for _, item := range items {
		services = append(services, *item)
	}
	return domain.ListServiceResponse{Services: services}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.CatalogService, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.CatalogService{}, domain.ErrInvalidOrganization
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.CatalogService{}, domain.ErrInvalidID
	}

	svc, err := s.repo.FindByID(ctx, s.db, orgID, parsed)
	if err != nil {
		return domain.CatalogService{}, err
	}
	if svc == nil {
		return domain.CatalogService{}, domain.ErrNotFound
	}
	return *svc, nil
}
