package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sphera-erp/sphera/internal/orgcontext"
	"github.com/sphera-erp/sphera/internal/pricing/domain"
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
		log:   p.Log.Named("pricing.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Create registers a new active price for the pair and retires any previous
// active row, keeping the one-active-price invariant at the storage level.
func (s *Service) Create(ctx context.Context, req domain.CreatePriceRequest) (domain.ClientServicePrice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ClientServicePrice{}, domain.ErrInvalidOrganization
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return domain.ClientServicePrice{}, domain.ErrInvalidClient
	}
	serviceID, err := snowflake.ParseString(strings.TrimSpace(req.ServiceID))
	if err != nil || serviceID == 0 {
		return domain.ClientServicePrice{}, domain.ErrInvalidService
	}
	if req.UnitPrice.LessThanOrEqual(decimal.Zero) {
		return domain.ClientServicePrice{}, domain.ErrInvalidUnitPrice
	}
	if req.StartDate.IsZero() {
		return domain.ClientServicePrice{}, domain.ErrInvalidStartDate
	}

	now := time.Now().UTC()
	price := domain.ClientServicePrice{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		ClientID:  clientID,
		ServiceID: serviceID,
		UnitPrice: req.UnitPrice,
		StartDate: req.StartDate,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivatePair(ctx, tx, orgID, clientID, serviceID, now); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &price)
	})
	if err != nil {
		return domain.ClientServicePrice{}, err
	}
	return price, nil
}

func (s *Service) Snapshot(ctx context.Context, clientIDs []snowflake.ID) (domain.Snapshot, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Snapshot{}, domain.ErrInvalidOrganization
	}

	rows, err := s.repo.FindActive(ctx, s.db, orgID, clientIDs)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.NewSnapshot(rows), nil
}
