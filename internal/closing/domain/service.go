package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type StartSessionRequest struct {
	EntryIDs []string
}

type ConfigureGroupRequest struct {
	SessionID string
	Config    GroupConfig
}

// GroupView is the presentation shape of the group currently being closed.
type GroupView struct {
	Client        ClientSummary  `json:"client"`
	EntryCount    int            `json:"entry_count"`
	TotalAmount   string         `json:"total_amount"`
	TotalDisplay  string         `json:"total_display"`
	MissingPrices []MissingPrice `json:"missing_prices,omitempty"`
	Config        GroupConfig    `json:"config"`
}

// SessionView is a read-only snapshot of a closing session.
type SessionView struct {
	ID           string          `json:"id"`
	State        SessionState    `json:"state"`
	GroupIndex   int             `json:"group_index"`
	GroupCount   int             `json:"group_count"`
	Progress     string          `json:"progress"`
	Current      *GroupView      `json:"current_group,omitempty"`
	ClosedGroups []ClosedGroup   `json:"closed_groups,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	TotalAmount  decimal.Decimal `json:"-"`
}

// ClosedGroup records one confirmed gateway success inside a session.
type ClosedGroup struct {
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	InvoiceID  string    `json:"invoice_id"`
	Amount     string    `json:"amount"`
	ClosedAt   time.Time `json:"closed_at"`
}

type Service interface {
	// StartSession validates the selected entries, builds ordered closure
	// groups and opens a new session presenting the first group.
	StartSession(context.Context, StartSessionRequest) (SessionView, error)
	// Configure replaces the operator input for the currently presented group.
	Configure(context.Context, ConfigureGroupRequest) (SessionView, error)
	// Submit closes the currently presented group against the gateway and
	// advances on success.
	Submit(ctx context.Context, sessionID string) (SessionView, error)
	// Cancel discards the remainder of the session. Already-closed groups
	// stay closed.
	Cancel(ctx context.Context, sessionID string) (SessionView, error)
	Get(ctx context.Context, sessionID string) (SessionView, error)
}

// InvoiceGateway is the remote invoicing service. It is authoritative for
// invoice existence; the engine never retries a call on its own.
type InvoiceGateway interface {
	CloseInvoicesForClient(context.Context, CloseRequest) (CloseResult, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEntryID      = errors.New("invalid_entry_id")
	ErrEntriesNotFound     = errors.New("entries_not_found")
	ErrNoGroups            = errors.New("no_groups")
	ErrSessionNotFound     = errors.New("session_not_found")
	ErrSessionBusy         = errors.New("session_busy")
	ErrSessionFinished     = errors.New("session_finished")
	ErrSessionLocked       = errors.New("session_locked")
	ErrInvalidBehavior     = errors.New("invalid_missing_price_behavior")
	ErrInvalidCloseOption  = errors.New("invalid_close_option")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
	ErrMissingFirstDueDate = errors.New("missing_first_due_date")
)

// NonBillableEntriesError rejects a whole batch because some selected
// entries are marked non-billable. Nothing is submitted.
type NonBillableEntriesError struct {
	EntryIDs []snowflake.ID
}

func (e *NonBillableEntriesError) Error() string {
	return fmt.Sprintf("non_billable_entries: %s", joinIDs(e.EntryIDs))
}

// AlreadyInvoicedError rejects a whole batch because some selected entries
// already belong to an invoice.
type AlreadyInvoicedError struct {
	EntryIDs []snowflake.ID
}

func (e *AlreadyInvoicedError) Error() string {
	return fmt.Sprintf("already_invoiced_entries: %s", joinIDs(e.EntryIDs))
}

// GatewayError carries the remote service's message verbatim so the
// operator sees exactly what the gateway reported.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return "invoice_gateway_failed"
	}
	return e.Message
}

func joinIDs(ids []snowflake.ID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}
