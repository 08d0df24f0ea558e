package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
	clientdomain "github.com/sphera-erp/sphera/internal/client/domain"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	pricingdomain "github.com/sphera-erp/sphera/internal/pricing/domain"
)

var asOf = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

func testClients() map[string]clientdomain.Client {
	day := 5
	return map[string]clientdomain.Client{
		"1": {ID: 1, Name: "Beta Ltda", BillingDueDay: &day},
		"2": {ID: 2, Name: "Alfa SA"},
	}
}

func testPrices() pricingdomain.Snapshot {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return pricingdomain.NewSnapshot([]*pricingdomain.ClientServicePrice{
		{ClientID: 1, ServiceID: 10, UnitPrice: decimal.RequireFromString("100.00"), StartDate: start, IsActive: true},
		{ClientID: 2, ServiceID: 10, UnitPrice: decimal.RequireFromString("50.00"), StartDate: start, IsActive: true},
	})
}

func entry(id, clientID, serviceID int64, qty string) entrydomain.BillingEntry {
	return entrydomain.BillingEntry{
		ID:          snowflake.ID(id),
		ClientID:    snowflake.ID(clientID),
		ServiceID:   snowflake.ID(serviceID),
		Quantity:    decimal.RequireFromString(qty),
		ServiceDate: asOf,
		IsBillable:  true,
	}
}

func TestBuildGroupsPartitionsByClientOrderedByName(t *testing.T) {
	entries := []entrydomain.BillingEntry{
		entry(100, 1, 10, "2"),
		entry(101, 2, 10, "1"),
		entry(102, 1, 10, "1.5"),
	}

	groups, err := buildGroups(entries, testClients(), testPrices(), asOf)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "Alfa SA", groups[0].Client.Name)
	assert.True(t, groups[0].TotalAmount.Equal(decimal.RequireFromString("50.00")))
	assert.Len(t, groups[0].Entries, 1)

	assert.Equal(t, "Beta Ltda", groups[1].Client.Name)
	assert.True(t, groups[1].TotalAmount.Equal(decimal.RequireFromString("350.00")))
	assert.Len(t, groups[1].Entries, 2)
	assert.Empty(t, groups[1].MissingPrices)
}

func TestBuildGroupsRejectsNonBillableBatch(t *testing.T) {
	bad := entry(101, 1, 10, "1")
	bad.IsBillable = false
	entries := []entrydomain.BillingEntry{entry(100, 1, 10, "1"), bad}

	groups, err := buildGroups(entries, testClients(), testPrices(), asOf)
	assert.Nil(t, groups)

	var nonBillable *domain.NonBillableEntriesError
	require.ErrorAs(t, err, &nonBillable)
	assert.Equal(t, []snowflake.ID{101}, nonBillable.EntryIDs)
}

func TestBuildGroupsRejectsAlreadyInvoicedBatch(t *testing.T) {
	invoiceID := "inv_123"
	bad := entry(102, 2, 10, "1")
	bad.InvoiceID = &invoiceID
	entries := []entrydomain.BillingEntry{
		entry(100, 1, 10, "1"),
		entry(101, 1, 10, "2"),
		entry(103, 1, 10, "1"),
		bad,
	}

	groups, err := buildGroups(entries, testClients(), testPrices(), asOf)
	assert.Nil(t, groups)

	var invoiced *domain.AlreadyInvoicedError
	require.ErrorAs(t, err, &invoiced)
	assert.Equal(t, []snowflake.ID{102}, invoiced.EntryIDs)
}

func TestBuildGroupsNonBillableTakesPrecedence(t *testing.T) {
	invoiceID := "inv_9"
	nonBillable := entry(100, 1, 10, "1")
	nonBillable.IsBillable = false
	invoiced := entry(101, 1, 10, "1")
	invoiced.InvoiceID = &invoiceID

	_, err := buildGroups([]entrydomain.BillingEntry{nonBillable, invoiced}, testClients(), testPrices(), asOf)

	var nbErr *domain.NonBillableEntriesError
	assert.ErrorAs(t, err, &nbErr)
}

func TestBuildGroupsMissingPriceContributesZero(t *testing.T) {
	entries := []entrydomain.BillingEntry{
		entry(100, 1, 10, "2"),
		entry(101, 1, 99, "3"),
	}

	groups, err := buildGroups(entries, testClients(), testPrices(), asOf)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	group := groups[0]
	assert.True(t, group.TotalAmount.Equal(decimal.RequireFromString("200.00")))
	require.Len(t, group.MissingPrices, 1)
	assert.Equal(t, snowflake.ID(101), group.MissingPrices[0].EntryID)
	assert.Equal(t, snowflake.ID(99), group.MissingPrices[0].ServiceID)
}

func TestBuildGroupsCarriesBillingDueDay(t *testing.T) {
	groups, err := buildGroups([]entrydomain.BillingEntry{entry(100, 1, 10, "1")}, testClients(), testPrices(), asOf)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].Client.BillingDueDay)
	assert.Equal(t, 5, *groups[0].Client.BillingDueDay)
}
