package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sphera-erp/sphera/internal/billingentry/domain"
	"github.com/sphera-erp/sphera/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, domain.Repository, *snowflake.Node) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.BillingEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return gdb, Provide(), node
}

func seedEntry(t *testing.T, gdb *gorm.DB, repo domain.Repository, node *snowflake.Node, orgID, clientID snowflake.ID, day int, billable bool, invoiceID *string) *domain.BillingEntry {
	t.Helper()
	entry := &domain.BillingEntry{
		ID:          node.Generate(),
		OrgID:       orgID,
		ClientID:    clientID,
		ServiceID:   node.Generate(),
		Quantity:    decimal.NewFromInt(1),
		ServiceDate: time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
		IsBillable:  billable,
		InvoiceID:   invoiceID,
	}
	require.NoError(t, repo.Insert(context.Background(), gdb, entry))
	return entry
}

func TestInsertPersistsNonBillableFlag(t *testing.T) {
	gdb, repo, node := setup(t)
	ctx := context.Background()
	orgID := node.Generate()

	entry := seedEntry(t, gdb, repo, node, orgID, node.Generate(), 1, false, nil)

	rows, err := repo.FindByIDs(ctx, gdb, orgID, []snowflake.ID{entry.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsBillable)
}

func TestListFiltersUninvoicedAndBillable(t *testing.T) {
	gdb, repo, node := setup(t)
	ctx := context.Background()
	orgID := node.Generate()
	clientID := node.Generate()

	billed := "inv_1"
	seedEntry(t, gdb, repo, node, orgID, clientID, 1, true, nil)
	seedEntry(t, gdb, repo, node, orgID, clientID, 2, false, nil)
	seedEntry(t, gdb, repo, node, orgID, clientID, 3, true, &billed)

	billable := true
	got, err := repo.List(ctx, gdb, orgID, domain.ListEntryFilter{
		ClientID:   clientID,
		IsBillable: &billable,
		Uninvoiced: true,
	}, pagination.Pagination{PageSize: 50})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ServiceDate.Day())
}

func TestListIsOrgScoped(t *testing.T) {
	gdb, repo, node := setup(t)
	ctx := context.Background()
	orgA := node.Generate()
	orgB := node.Generate()

	seedEntry(t, gdb, repo, node, orgA, node.Generate(), 1, true, nil)
	seedEntry(t, gdb, repo, node, orgB, node.Generate(), 2, true, nil)

	got, err := repo.List(ctx, gdb, orgA, domain.ListEntryFilter{}, pagination.Pagination{PageSize: 50})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, orgA, got[0].OrgID)
}

func TestListCursorPagination(t *testing.T) {
	gdb, repo, node := setup(t)
	ctx := context.Background()
	orgID := node.Generate()
	clientID := node.Generate()

	// Same service date so ordering falls through to id.
	first := seedEntry(t, gdb, repo, node, orgID, clientID, 5, true, nil)
	second := seedEntry(t, gdb, repo, node, orgID, clientID, 5, true, nil)
	third := seedEntry(t, gdb, repo, node, orgID, clientID, 5, true, nil)

	page, err := repo.List(ctx, gdb, orgID, domain.ListEntryFilter{}, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	// Over-fetches one row so the caller can detect another page.
	require.Len(t, page, 3)
	assert.Equal(t, first.ID, page[0].ID)
	assert.Equal(t, second.ID, page[1].ID)

	token, err := pagination.EncodeCursor(pagination.Cursor{ID: second.ID.String()})
	require.NoError(t, err)

	rest, err := repo.List(ctx, gdb, orgID, domain.ListEntryFilter{}, pagination.Pagination{PageToken: token, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, third.ID, rest[0].ID)
}

func TestMarkInvoicedSkipsAlreadyStampedRows(t *testing.T) {
	gdb, repo, node := setup(t)
	ctx := context.Background()
	orgID := node.Generate()
	clientID := node.Generate()

	fresh := seedEntry(t, gdb, repo, node, orgID, clientID, 1, true, nil)
	prior := "inv_old"
	stamped := seedEntry(t, gdb, repo, node, orgID, clientID, 2, true, &prior)

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	err := repo.MarkInvoiced(ctx, gdb, orgID, []snowflake.ID{fresh.ID, stamped.ID}, "inv_new", now)
	require.NoError(t, err)

	rows, err := repo.FindByIDs(ctx, gdb, orgID, []snowflake.ID{fresh.ID, stamped.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.InvoiceID)
		switch row.ID {
		case fresh.ID:
			assert.Equal(t, "inv_new", *row.InvoiceID)
		case stamped.ID:
			assert.Equal(t, "inv_old", *row.InvoiceID)
		}
	}
}

func TestMarkInvoicedIsOrgScoped(t *testing.T) {
	gdb, repo, node := setup(t)
	ctx := context.Background()
	orgA := node.Generate()
	orgB := node.Generate()

	entry := seedEntry(t, gdb, repo, node, orgA, node.Generate(), 1, true, nil)

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkInvoiced(ctx, gdb, orgB, []snowflake.ID{entry.ID}, "inv_x", now))

	rows, err := repo.FindByIDs(ctx, gdb, orgA, []snowflake.ID{entry.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].InvoiceID)
}
