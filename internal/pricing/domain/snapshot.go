package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type pairKey struct {
	ClientID  snowflake.ID
	ServiceID snowflake.ID
}

// Snapshot is an immutable in-memory view of the active price list.
// Resolution is a pure lookup; callers build one snapshot per closing
// run and share it across every group.
type Snapshot struct {
	prices map[pairKey][]*ClientServicePrice
}

func NewSnapshot(rows []*ClientServicePrice) Snapshot {
	prices := make(map[pairKey][]*ClientServicePrice, len(rows))
	for _, row := range rows {
		if row == nil || !row.IsActive {
			continue
		}
		key := pairKey{ClientID: row.ClientID, ServiceID: row.ServiceID}
		prices[key] = append(prices[key], row)
	}
	return Snapshot{prices: prices}
}

// Resolve returns the unit price active for the pair as of the given date.
// When several rows have started, the most recent start date wins. A missing
// price is reported as ErrPriceNotFound, never as a zero amount.
func (s Snapshot) Resolve(clientID, serviceID snowflake.ID, asOf time.Time) (decimal.Decimal, error) {
	rows := s.prices[pairKey{ClientID: clientID, ServiceID: serviceID}]

	var best *ClientServicePrice
	for _, row := range rows {
		if row.StartDate.After(asOf) {
			continue
		}
		if best == nil || row.StartDate.After(best.StartDate) {
			best = row
		}
	}
	if best == nil {
		return decimal.Decimal{}, ErrPriceNotFound
	}
	return best.UnitPrice, nil
}
