package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sphera-erp/sphera/internal/billingentry/domain"
	"github.com/sphera-erp/sphera/internal/orgcontext"
	"github.com/sphera-erp/sphera/pkg/db/pagination"
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
		log:   p.Log.Named("billingentry.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEntryRequest) (domain.BillingEntry, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.BillingEntry{}, domain.ErrInvalidOrganization
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return domain.BillingEntry{}, domain.ErrInvalidClient
	}
	serviceID, err := snowflake.ParseString(strings.TrimSpace(req.ServiceID))
	if err != nil || serviceID == 0 {
		return domain.BillingEntry{}, domain.ErrInvalidService
	}
	if req.Quantity.LessThan(decimal.NewFromInt(1)) {
		return domain.BillingEntry{}, domain.ErrInvalidQuantity
	}
	if req.ServiceDate.IsZero() {
		return domain.BillingEntry{}, domain.ErrInvalidServiceDate
	}

	now := time.Now().UTC()
	entry := domain.BillingEntry{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ClientID:    clientID,
		ServiceID:   serviceID,
		Quantity:    req.Quantity,
		ServiceDate: req.ServiceDate,
		Notes:       strings.TrimSpace(req.Notes),
		IsBillable:  req.IsBillable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		return domain.BillingEntry{}, err
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEntryRequest) (domain.ListEntryResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListEntryResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListEntryFilter{
		From:       req.From,
		To:         req.To,
		IsBillable: req.IsBillable,
		Uninvoiced: req.Uninvoiced,
	}
	if id := strings.TrimSpace(req.ClientID); id != "" {
		parsed, err := snowflake.ParseString(id)
		if err != nil || parsed == 0 {
			return domain.ListEntryResponse{}, domain.ErrInvalidClient
		}
		filter.ClientID = parsed
	}
	if id := strings.TrimSpace(req.ServiceID); id != "" {
		parsed, err := snowflake.ParseString(id)
		if err != nil || parsed == 0 {
			return domain.ListEntryResponse{}, domain.ErrInvalidService
		}
		filter.ServiceID = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListEntryResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(e *domain.BillingEntry) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: e.ID.String()})
		return token
	})

	entries := make([]domain.BillingEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *item)
	}
	return domain.ListEntryResponse{PageInfo: pageInfo, Entries: entries}, nil
}

func (s *Service) GetByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.BillingEntry, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	items, err := s.repo.FindByIDs(ctx, s.db, orgID, ids)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.BillingEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *item)
	}
	return entries, nil
}
