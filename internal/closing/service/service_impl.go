package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
	clientdomain "github.com/sphera-erp/sphera/internal/client/domain"
	"github.com/sphera-erp/sphera/internal/clock"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/closing/format"
	"github.com/sphera-erp/sphera/internal/closing/lock"
	"github.com/sphera-erp/sphera/internal/closing/schedule"
	"github.com/sphera-erp/sphera/internal/config"
	"github.com/sphera-erp/sphera/internal/observability/metrics"
	"github.com/sphera-erp/sphera/internal/orgcontext"
	pricingdomain "github.com/sphera-erp/sphera/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Entries entrydomain.Repository
	Clients clientdomain.Repository
	Prices  pricingdomain.Service
	Gateway domain.InvoiceGateway
	Locker  *lock.SessionLocker `optional:"true"`
	Policy  *config.ClosingConfigHolder
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	entries entrydomain.Repository
	clients clientdomain.Repository
	prices  pricingdomain.Service
	gateway domain.InvoiceGateway
	locker  *lock.SessionLocker
	policy  *config.ClosingConfigHolder
	metrics *metrics.Metrics
	closing *metrics.ClosingMetrics

	mu       sync.RWMutex
	sessions map[string]*session
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("closing.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		entries:  p.Entries,
		clients:  p.Clients,
		prices:   p.Prices,
		gateway:  p.Gateway,
		locker:   p.Locker,
		policy:   p.Policy,
		metrics:  p.Metrics,
		closing:  metrics.Closing(),
		sessions: make(map[string]*session),
	}
}

// sessionRetention keeps a finished session readable for the summary
// endpoint before it is dropped from memory.
const sessionRetention = time.Hour

func (s *Service) scheduleEviction(sessionID string) {
	time.AfterFunc(sessionRetention, func() {
		s.evict(sessionID)
	})
}

func (s *Service) evict(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *Service) formatter() *format.Formatter {
	policy := s.policy.Get()
	return format.New(policy.Locale, policy.Currency)
}

func (s *Service) StartSession(ctx context.Context, req domain.StartSessionRequest) (domain.SessionView, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.SessionView{}, domain.ErrInvalidOrganization
	}
	if len(req.EntryIDs) == 0 {
		return domain.SessionView{}, domain.ErrInvalidEntryID
	}

	seen := make(map[snowflake.ID]struct{}, len(req.EntryIDs))
	ids := make([]snowflake.ID, 0, len(req.EntryIDs))
	for _, raw := range req.EntryIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return domain.SessionView{}, domain.ErrInvalidEntryID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	rows, err := s.entries.FindByIDs(ctx, s.db, orgID, ids)
	if err != nil {
		return domain.SessionView{}, err
	}
	if len(rows) != len(ids) {
		return domain.SessionView{}, domain.ErrEntriesNotFound
	}
	entries := make([]entrydomain.BillingEntry, 0, len(rows))
	clientIDSet := make(map[snowflake.ID]struct{})
	for _, row := range rows {
		entries = append(entries, *row)
		clientIDSet[row.ClientID] = struct{}{}
	}
	clientIDs := make([]snowflake.ID, 0, len(clientIDSet))
	for id := range clientIDSet {
		clientIDs = append(clientIDs, id)
	}

	clientRows, err := s.clients.FindByIDs(ctx, s.db, orgID, clientIDs)
	if err != nil {
		return domain.SessionView{}, err
	}
	clients := make(map[string]clientdomain.Client, len(clientRows))
	for _, row := range clientRows {
		clients[row.ID.String()] = *row
	}

	snapshot, err := s.prices.Snapshot(ctx, clientIDs)
	if err != nil {
		return domain.SessionView{}, err
	}

	asOf := s.clock.Now()
	groups, err := buildGroups(entries, clients, snapshot, asOf)
	if err != nil {
		return domain.SessionView{}, err
	}
	if len(groups) == 0 {
		return domain.SessionView{}, domain.ErrNoGroups
	}

	token, acquired, err := s.locker.Acquire(ctx, orgID, lock.DefaultTTL)
	if err != nil {
		return domain.SessionView{}, err
	}
	if !acquired {
		return domain.SessionView{}, domain.ErrSessionLocked
	}

	sess := newSession(s.genID.Generate().String(), orgID, groups, asOf, s.policy.Get())
	sess.lockToken = token

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.metrics.RecordSessionStarted(ctx, orgID.String())
	s.closing.SessionStarted(len(groups))
	s.log.Info("closing session started",
		zap.String("session_id", sess.id),
		zap.Int("group_count", len(groups)),
		zap.Int("entry_count", len(entries)),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(s.formatter()), nil
}

func (s *Service) find(ctx context.Context, sessionID string) (*session, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || sess.orgID != orgID {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (domain.SessionView, error) {
	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(s.formatter()), nil
}

func (s *Service) Configure(ctx context.Context, req domain.ConfigureGroupRequest) (domain.SessionView, error) {
	sess, err := s.find(ctx, req.SessionID)
	if err != nil {
		return domain.SessionView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.configure(req.Config, s.policy.Get()); err != nil {
		return domain.SessionView{}, err
	}
	return sess.view(s.formatter()), nil
}

// Submit assembles the close request for the currently presented group,
// calls the gateway once and advances on confirmed success. On any failure
// the session stays on the same group; the returned view carries the
// failure message alongside the error.
func (s *Service) Submit(ctx context.Context, sessionID string) (domain.SessionView, error) {
	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	policy := s.policy.Get()

	sess.mu.Lock()
	group, cfg, err := sess.beginSubmit()
	if err != nil {
		sess.mu.Unlock()
		return domain.SessionView{}, err
	}

	req, err := s.assembleCloseRequest(group, cfg)
	if err != nil {
		sess.failSubmit(err.Error())
		view := sess.view(s.formatter())
		sess.mu.Unlock()
		s.closing.CloseError(metrics.CloseErrorTypeSchedule, 0)
		return view, err
	}
	sess.mu.Unlock()

	// The gateway call is the only suspension point; the session mutex is
	// not held across it. The submitting state keeps other submissions out.
	start := time.Now()
	result, gwErr := s.gateway.CloseInvoicesForClient(ctx, req)
	elapsed := time.Since(start)
	s.metrics.RecordGatewayLatency(ctx, elapsed, gwErr == nil)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if gwErr != nil {
		sess.failSubmit(gwErr.Error())
		s.metrics.RecordCloseFailure(ctx, sess.orgID.String(), "gateway")
		s.closing.CloseError(metrics.CloseErrorTypeGateway, elapsed)
		s.log.Warn("group close failed",
			zap.String("session_id", sess.id),
			zap.Int("group_index", sess.index),
			zap.String("client_id", group.Client.ID.String()),
			zap.Error(gwErr),
		)
		return sess.view(s.formatter()), gwErr
	}

	now := s.clock.Now()
	if err := s.stampEntries(ctx, sess.orgID, group, result.InvoiceID, now); err != nil {
		// The gateway already closed the invoice; it stays authoritative.
		// The local stamp is repairable, so advance anyway and log loudly.
		s.log.Error("invoice stamp failed after gateway success",
			zap.String("session_id", sess.id),
			zap.String("invoice_id", result.InvoiceID),
			zap.String("client_id", group.Client.ID.String()),
			zap.Error(err),
		)
	}

	sess.completeSubmit(domain.ClosedGroup{
		ClientID:   group.Client.ID.String(),
		ClientName: group.Client.Name,
		InvoiceID:  result.InvoiceID,
		Amount:     group.TotalAmount.StringFixed(2),
		ClosedAt:   now,
	}, policy)

	s.metrics.RecordGroupClosed(ctx, sess.orgID.String())
	s.closing.GroupClosed(elapsed)
	s.log.Info("group closed",
		zap.String("session_id", sess.id),
		zap.String("client_id", group.Client.ID.String()),
		zap.String("invoice_id", result.InvoiceID),
	)

	if sess.state == domain.StateDone {
		s.closing.SessionCompleted()
		if err := s.locker.Release(ctx, sess.orgID, sess.lockToken); err != nil {
			s.log.Warn("session lock release failed", zap.String("session_id", sess.id), zap.Error(err))
		}
		s.scheduleEviction(sess.id)
		s.log.Info("closing session completed",
			zap.String("session_id", sess.id),
			zap.Int("groups_closed", len(sess.closed)),
		)
	}
	return sess.view(s.formatter()), nil
}

func (s *Service) Cancel(ctx context.Context, sessionID string) (domain.SessionView, error) {
	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.cancel(); err != nil {
		return domain.SessionView{}, err
	}

	s.closing.SessionCancelled()
	if err := s.locker.Release(ctx, sess.orgID, sess.lockToken); err != nil {
		s.log.Warn("session lock release failed", zap.String("session_id", sess.id), zap.Error(err))
	}
	s.scheduleEviction(sess.id)
	s.log.Info("closing session cancelled",
		zap.String("session_id", sess.id),
		zap.Int("groups_closed", len(sess.closed)),
		zap.Int("groups_discarded", sess.groupCount-sess.index),
	)
	return sess.view(s.formatter()), nil
}

// assembleCloseRequest turns a group and its operator configuration into the
// outbound gateway command. Issue date is always "today" at submission time.
func (s *Service) assembleCloseRequest(group domain.ClosureGroup, cfg domain.GroupConfig) (domain.CloseRequest, error) {
	now := s.clock.Now()
	issueDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	total := group.TotalAmount
	req := domain.CloseRequest{
		ClientID:             group.Client.ID.String(),
		IssueDate:            issueDate,
		MissingPriceBehavior: cfg.MissingPriceBehavior,
		TotalAmount:          &total,
	}

	if cfg.CloseOption == domain.CloseWithInstallments {
		installments, err := schedule.BuildSchedule(group.TotalAmount, cfg.InstallmentCount, *cfg.FirstDueDate)
		if err != nil {
			return domain.CloseRequest{}, err
		}
		req.Installments = installments
		return req, nil
	}

	dueDate := cfg.OverrideDueDate
	if dueDate == nil {
		derived := schedule.DeriveDefaultDueDate(group.Client.BillingDueDay, issueDate)
		dueDate = &derived
	}
	req.DueDate = dueDate
	return req, nil
}

// stampEntries records the gateway's invoice id on the consumed entries so
// they can never enter another closure group.
func (s *Service) stampEntries(ctx context.Context, orgID snowflake.ID, group domain.ClosureGroup, invoiceID string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.entries.MarkInvoiced(ctx, tx, orgID, group.EntryIDs(), invoiceID, now)
	})
}
