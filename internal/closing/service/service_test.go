package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
	entryrepo "github.com/sphera-erp/sphera/internal/billingentry/repository"
	clientdomain "github.com/sphera-erp/sphera/internal/client/domain"
	clientrepo "github.com/sphera-erp/sphera/internal/client/repository"
	"github.com/sphera-erp/sphera/internal/clock"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/config"
	"github.com/sphera-erp/sphera/internal/observability/metrics"
	"github.com/sphera-erp/sphera/internal/orgcontext"
	pricingdomain "github.com/sphera-erp/sphera/internal/pricing/domain"
	pricingrepo "github.com/sphera-erp/sphera/internal/pricing/repository"
	pricingservice "github.com/sphera-erp/sphera/internal/pricing/service"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeGateway struct {
	requests []domain.CloseRequest
	failNext error
	nextID   int
}

func (g *fakeGateway) CloseInvoicesForClient(_ context.Context, req domain.CloseRequest) (domain.CloseResult, error) {
	g.requests = append(g.requests, req)
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return domain.CloseResult{}, err
	}
	g.nextID++
	return domain.CloseResult{InvoiceID: "inv_" + strconv.Itoa(g.nextID)}, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	gateway *fakeGateway
	node    *snowflake.Node
	clock   *clock.FakeClock
	ctx     context.Context
	orgID   snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&entrydomain.BillingEntry{},
		&pricingdomain.ClientServicePrice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fakeClock := clock.NewFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))

	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	prices := pricingservice.New(pricingservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  pricingrepo.Provide(),
	})

	gw := &fakeGateway{}
	svc := &Service{
		db:       db,
		log:      log,
		genID:    node,
		clock:    fakeClock,
		entries:  entryrepo.Provide(),
		clients:  clientrepo.Provide(),
		prices:   prices,
		gateway:  gw,
		policy:   &config.ClosingConfigHolder{},
		metrics:  m,
		closing:  metrics.Closing(),
		sessions: make(map[string]*session),
	}

	orgID := node.Generate()
	return &fixture{
		svc:     svc,
		db:      db,
		gateway: gw,
		node:    node,
		clock:   fakeClock,
		ctx:     orgcontext.WithOrgID(context.Background(), orgID.Int64()),
		orgID:   orgID,
	}
}

func (f *fixture) seedClient(t *testing.T, name string, billingDueDay *int) snowflake.ID {
	t.Helper()
	client := clientdomain.Client{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		Name:          name,
		Email:         name + "@example.com",
		BillingDueDay: billingDueDay,
		Active:        true,
	}
	require.NoError(t, f.db.Create(&client).Error)
	return client.ID
}

func (f *fixture) seedPrice(t *testing.T, clientID, serviceID snowflake.ID, unit string) {
	t.Helper()
	require.NoError(t, f.db.Create(&pricingdomain.ClientServicePrice{
		ID:        f.node.Generate(),
		OrgID:     f.orgID,
		ClientID:  clientID,
		ServiceID: serviceID,
		UnitPrice: decimal.RequireFromString(unit),
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}).Error)
}

func (f *fixture) seedEntry(t *testing.T, clientID, serviceID snowflake.ID, qty string, billable bool) snowflake.ID {
	t.Helper()
	entry := entrydomain.BillingEntry{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		ClientID:    clientID,
		ServiceID:   serviceID,
		Quantity:    decimal.RequireFromString(qty),
		ServiceDate: time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC),
		IsBillable:  billable,
	}
	require.NoError(t, f.db.Create(&entry).Error)
	return entry.ID
}

func TestClosingWorkflowHappyPath(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()

	day := 5
	alfa := f.seedClient(t, "Alfa SA", &day)
	beta := f.seedClient(t, "Beta Ltda", nil)
	f.seedPrice(t, alfa, serviceID, "100.00")
	f.seedPrice(t, beta, serviceID, "40.00")

	e1 := f.seedEntry(t, alfa, serviceID, "2", true)
	e2 := f.seedEntry(t, beta, serviceID, "3", true)
	e3 := f.seedEntry(t, alfa, serviceID, "1", true)

	view, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{
		EntryIDs: []string{e1.String(), e2.String(), e3.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePresenting, view.State)
	assert.Equal(t, 2, view.GroupCount)
	assert.Equal(t, "1 of 2", view.Progress)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Alfa SA", view.Current.Client.Name)
	assert.Equal(t, "300.00", view.Current.TotalAmount)

	// Group 1: lump sum, derived due date (billing day 5 already passed on
	// March 10, so it rolls to April 5).
	view, err = f.svc.Submit(f.ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePresenting, view.State)
	assert.Equal(t, 1, view.GroupIndex)
	assert.Equal(t, "Beta Ltda", view.Current.Client.Name)

	require.Len(t, f.gateway.requests, 1)
	sent := f.gateway.requests[0]
	assert.Equal(t, alfa.String(), sent.ClientID)
	require.NotNil(t, sent.DueDate)
	assert.Equal(t, time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC), *sent.DueDate)
	assert.Empty(t, sent.Installments)

	var stamped entrydomain.BillingEntry
	require.NoError(t, f.db.First(&stamped, "id = ?", e1).Error)
	require.NotNil(t, stamped.InvoiceID)
	assert.Equal(t, view.ClosedGroups[0].InvoiceID, *stamped.InvoiceID)

	// Group 2: installments, submitted the next day.
	f.clock.Advance(24 * time.Hour)
	first := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	view, err = f.svc.Configure(f.ctx, domain.ConfigureGroupRequest{
		SessionID: view.ID,
		Config: domain.GroupConfig{
			MissingPriceBehavior: domain.MissingPriceAllowManual,
			CloseOption:          domain.CloseWithInstallments,
			InstallmentCount:     3,
			FirstDueDate:         &first,
		},
	})
	require.NoError(t, err)

	view, err = f.svc.Submit(f.ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, view.State)
	assert.Len(t, view.ClosedGroups, 2)

	require.Len(t, f.gateway.requests, 2)
	sent = f.gateway.requests[1]
	assert.Equal(t, beta.String(), sent.ClientID)
	assert.Equal(t, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC), sent.IssueDate)
	assert.Nil(t, sent.DueDate)
	require.Len(t, sent.Installments, 3)
	sum := decimal.Zero
	for _, inst := range sent.Installments {
		sum = sum.Add(inst.Amount)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("120.00")))

	// A fresh destination struct: reusing the populated one would leak its
	// primary key into the WHERE clause.
	var stampedBeta entrydomain.BillingEntry
	require.NoError(t, f.db.First(&stampedBeta, "id = ?", e2).Error)
	assert.NotNil(t, stampedBeta.InvoiceID)
}

func TestClosingWorkflowGatewayFailureKeepsGroup(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	f.seedPrice(t, alfa, serviceID, "10.00")
	e1 := f.seedEntry(t, alfa, serviceID, "1", true)

	view, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{EntryIDs: []string{e1.String()}})
	require.NoError(t, err)

	f.gateway.failNext = &domain.GatewayError{Message: "issue date outside open period"}
	failedView, err := f.svc.Submit(f.ctx, view.ID)
	require.Error(t, err)
	assert.Equal(t, "issue date outside open period", err.Error())
	assert.Equal(t, domain.StatePresenting, failedView.State)
	assert.Equal(t, 0, failedView.GroupIndex)
	assert.Equal(t, "issue date outside open period", failedView.LastError)

	var entry entrydomain.BillingEntry
	require.NoError(t, f.db.First(&entry, "id = ?", e1).Error)
	assert.Nil(t, entry.InvoiceID)

	// Retry in place succeeds.
	view, err = f.svc.Submit(f.ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, view.State)
	assert.Empty(t, view.LastError)
	assert.Len(t, f.gateway.requests, 2)
}

func TestClosingWorkflowRejectsInvoicedSelection(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	f.seedPrice(t, alfa, serviceID, "10.00")

	e1 := f.seedEntry(t, alfa, serviceID, "1", true)
	e2 := f.seedEntry(t, alfa, serviceID, "1", true)
	require.NoError(t, f.db.Model(&entrydomain.BillingEntry{}).
		Where("id = ?", e2).
		Update("invoice_id", "inv_old").Error)

	_, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{
		EntryIDs: []string{e1.String(), e2.String()},
	})

	var invoiced *domain.AlreadyInvoicedError
	require.ErrorAs(t, err, &invoiced)
	assert.Equal(t, []snowflake.ID{e2}, invoiced.EntryIDs)
	assert.Empty(t, f.gateway.requests)
}

func TestClosingWorkflowRejectsNonBillableSelection(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	e1 := f.seedEntry(t, alfa, serviceID, "1", false)

	_, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{EntryIDs: []string{e1.String()}})

	var nonBillable *domain.NonBillableEntriesError
	require.ErrorAs(t, err, &nonBillable)
	assert.Empty(t, f.gateway.requests)
}

func TestClosingWorkflowUnknownEntries(t *testing.T) {
	f := setup(t)
	_, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{
		EntryIDs: []string{f.node.Generate().String()},
	})
	assert.ErrorIs(t, err, domain.ErrEntriesNotFound)
}

func TestClosingWorkflowCancelDiscardsRemainder(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	beta := f.seedClient(t, "Beta Ltda", nil)
	f.seedPrice(t, alfa, serviceID, "10.00")
	f.seedPrice(t, beta, serviceID, "10.00")
	e1 := f.seedEntry(t, alfa, serviceID, "1", true)
	e2 := f.seedEntry(t, beta, serviceID, "1", true)

	view, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{
		EntryIDs: []string{e1.String(), e2.String()},
	})
	require.NoError(t, err)

	view, err = f.svc.Submit(f.ctx, view.ID)
	require.NoError(t, err)

	view, err = f.svc.Cancel(f.ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, view.State)
	assert.Len(t, view.ClosedGroups, 1)

	// The first closure stays final, the second entry stays open.
	var closed, open entrydomain.BillingEntry
	require.NoError(t, f.db.First(&closed, "id = ?", e1).Error)
	assert.NotNil(t, closed.InvoiceID)
	require.NoError(t, f.db.First(&open, "id = ?", e2).Error)
	assert.Nil(t, open.InvoiceID)
	assert.Len(t, f.gateway.requests, 1)
}

func TestFinishedSessionReleasesPayloadAndEvicts(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	f.seedPrice(t, alfa, serviceID, "10.00")
	e1 := f.seedEntry(t, alfa, serviceID, "1", true)

	view, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{EntryIDs: []string{e1.String()}})
	require.NoError(t, err)

	view, err = f.svc.Submit(f.ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StateDone, view.State)

	f.svc.mu.RLock()
	sess := f.svc.sessions[view.ID]
	f.svc.mu.RUnlock()
	require.NotNil(t, sess)
	assert.Nil(t, sess.groups)

	// The summary stays readable until the retention window expires.
	got, err := f.svc.Get(f.ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.GroupCount)
	assert.Len(t, got.ClosedGroups, 1)

	f.svc.evict(view.ID)
	_, err = f.svc.Get(f.ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClosingSessionIsOrgScoped(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	f.seedPrice(t, alfa, serviceID, "10.00")
	e1 := f.seedEntry(t, alfa, serviceID, "1", true)

	view, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{EntryIDs: []string{e1.String()}})
	require.NoError(t, err)

	otherCtx := orgcontext.WithOrgID(context.Background(), f.node.Generate().Int64())
	_, err = f.svc.Get(otherCtx, view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClosingWorkflowScheduleErrorBeforeGateway(t *testing.T) {
	f := setup(t)
	serviceID := f.node.Generate()
	alfa := f.seedClient(t, "Alfa SA", nil)
	// No price seeded: total stays zero, which the scheduler refuses.
	e1 := f.seedEntry(t, alfa, serviceID, "1", true)

	view, err := f.svc.StartSession(f.ctx, domain.StartSessionRequest{EntryIDs: []string{e1.String()}})
	require.NoError(t, err)
	require.Len(t, view.Current.MissingPrices, 1)

	first := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	view, err = f.svc.Configure(f.ctx, domain.ConfigureGroupRequest{
		SessionID: view.ID,
		Config: domain.GroupConfig{
			MissingPriceBehavior: domain.MissingPriceAllowManual,
			CloseOption:          domain.CloseWithInstallments,
			InstallmentCount:     2,
			FirstDueDate:         &first,
		},
	})
	require.NoError(t, err)

	failedView, err := f.svc.Submit(f.ctx, view.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSchedule))
	assert.Equal(t, domain.StatePresenting, failedView.State)
	assert.Empty(t, f.gateway.requests)
}
