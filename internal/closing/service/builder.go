package service

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
	clientdomain "github.com/sphera-erp/sphera/internal/client/domain"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	pricingdomain "github.com/sphera-erp/sphera/internal/pricing/domain"
)

// buildGroups partitions the selected entries by client and attaches each
// partition's resolved total. Validation is front-loaded: a single
// non-billable or already-invoiced entry rejects the whole batch before any
// group exists. Unresolvable prices contribute zero and are recorded on the
// group for the missing-price policy downstream. Groups come back ordered by
// client name so the workflow steps through them deterministically.
func buildGroups(
	entries []entrydomain.BillingEntry,
	clients map[string]clientdomain.Client,
	prices pricingdomain.Snapshot,
	asOf time.Time,
) ([]domain.ClosureGroup, error) {
	nonBillableErr := &domain.NonBillableEntriesError{}
	invoicedErr := &domain.AlreadyInvoicedError{}
	for _, entry := range entries {
		if !entry.IsBillable {
			nonBillableErr.EntryIDs = append(nonBillableErr.EntryIDs, entry.ID)
		}
		if entry.Invoiced() {
			invoicedErr.EntryIDs = append(invoicedErr.EntryIDs, entry.ID)
		}
	}
	if len(nonBillableErr.EntryIDs) > 0 {
		return nil, nonBillableErr
	}
	if len(invoicedErr.EntryIDs) > 0 {
		return nil, invoicedErr
	}

	byClient := make(map[string]*domain.ClosureGroup)
	for _, entry := range entries {
		key := entry.ClientID.String()
		group, ok := byClient[key]
		if !ok {
			client, found := clients[key]
			if !found {
				return nil, errors.New("client not loaded: " + key)
			}
			group = &domain.ClosureGroup{
				Client: domain.ClientSummary{
					ID:            client.ID,
					Name:          client.Name,
					BillingDueDay: client.BillingDueDay,
				},
				TotalAmount: decimal.Zero,
			}
			byClient[key] = group
		}

		group.Entries = append(group.Entries, entry)

		unitPrice, err := prices.Resolve(entry.ClientID, entry.ServiceID, asOf)
		if err != nil {
			if errors.Is(err, pricingdomain.ErrPriceNotFound) {
				group.MissingPrices = append(group.MissingPrices, domain.MissingPrice{
					EntryID:   entry.ID,
					ServiceID: entry.ServiceID,
				})
				continue
			}
			return nil, err
		}
		group.TotalAmount = group.TotalAmount.Add(entry.Quantity.Mul(unitPrice).Round(2))
	}

	groups := make([]domain.ClosureGroup, 0, len(byClient))
	for _, group := range byClient {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Client.Name != groups[j].Client.Name {
			return groups[i].Client.Name < groups[j].Client.Name
		}
		return groups[i].Client.ID < groups[j].Client.ID
	})
	return groups, nil
}
