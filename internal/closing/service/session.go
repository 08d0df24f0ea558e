package service

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/closing/format"
	"github.com/sphera-erp/sphera/internal/closing/schedule"
	"github.com/sphera-erp/sphera/internal/config"
)

// session is the in-memory state of one closing run. Sessions are ephemeral:
// a process restart behaves like a cancel, which is safe because already
// acknowledged closures are final and not-yet-submitted groups are simply
// discarded.
type session struct {
	mu sync.Mutex

	id    string
	orgID snowflake.ID
	// groups is released once the session reaches a terminal state; only
	// groupCount and the closed summaries outlive it.
	groups     []domain.ClosureGroup
	groupCount int
	// priceAsOf pins the date the price snapshot was resolved against.
	priceAsOf time.Time

	state   domain.SessionState
	index   int
	config  domain.GroupConfig
	closed  []domain.ClosedGroup
	lastErr string

	lockToken string
}

func defaultGroupConfig(policy config.ClosingConfig) domain.GroupConfig {
	behavior := domain.MissingPriceBlock
	if policy.DefaultMissingPriceBehavior == "allow_manual" {
		behavior = domain.MissingPriceAllowManual
	}
	return domain.GroupConfig{
		MissingPriceBehavior: behavior,
		CloseOption:          domain.CloseWithoutInstallments,
	}
}

func newSession(id string, orgID snowflake.ID, groups []domain.ClosureGroup, asOf time.Time, policy config.ClosingConfig) *session {
	return &session{
		id:         id,
		orgID:      orgID,
		groups:     groups,
		groupCount: len(groups),
		priceAsOf:  asOf,
		state:      domain.StatePresenting,
		index:      0,
		config:     defaultGroupConfig(policy),
	}
}

// configure replaces the operator input for the group currently presented.
func (s *session) configure(cfg domain.GroupConfig, policy config.ClosingConfig) error {
	if s.state == domain.StateDone || s.state == domain.StateCancelled {
		return domain.ErrSessionFinished
	}
	if s.state != domain.StatePresenting {
		return domain.ErrSessionBusy
	}

	if !cfg.MissingPriceBehavior.Valid() {
		return domain.ErrInvalidBehavior
	}
	if !cfg.CloseOption.Valid() {
		return domain.ErrInvalidCloseOption
	}
	switch cfg.CloseOption {
	case domain.CloseWithInstallments:
		maxCount := schedule.MaxInstallments
		if policy.MaxInstallments > 0 && policy.MaxInstallments < maxCount {
			maxCount = policy.MaxInstallments
		}
		if cfg.InstallmentCount < schedule.MinInstallments || cfg.InstallmentCount > maxCount {
			return domain.ErrInvalidSchedule
		}
		if cfg.FirstDueDate == nil || cfg.FirstDueDate.IsZero() {
			return domain.ErrMissingFirstDueDate
		}
		// Override due dates only apply to lump-sum closures.
		cfg.OverrideDueDate = nil
	case domain.CloseWithoutInstallments:
		cfg.InstallmentCount = 0
		cfg.FirstDueDate = nil
	}

	s.config = cfg
	return nil
}

// beginSubmit moves the session into the submitting state and hands back
// what the caller needs to assemble the close request. Exactly one
// submission can be in flight.
func (s *session) beginSubmit() (domain.ClosureGroup, domain.GroupConfig, error) {
	if s.state == domain.StateDone || s.state == domain.StateCancelled {
		return domain.ClosureGroup{}, domain.GroupConfig{}, domain.ErrSessionFinished
	}
	if s.state != domain.StatePresenting {
		return domain.ClosureGroup{}, domain.GroupConfig{}, domain.ErrSessionBusy
	}
	s.state = domain.StateSubmitting
	s.lastErr = ""
	return s.groups[s.index], s.config, nil
}

// completeSubmit records a confirmed gateway success and advances. The
// per-group configuration resets so nothing leaks into the next client.
func (s *session) completeSubmit(closed domain.ClosedGroup, policy config.ClosingConfig) {
	s.closed = append(s.closed, closed)
	s.lastErr = ""
	s.config = defaultGroupConfig(policy)

	if s.index == s.groupCount-1 {
		s.state = domain.StateDone
		s.groups = nil
		return
	}
	s.index++
	s.state = domain.StatePresenting
}

// failSubmit keeps the session on the current group. The operator may fix
// the configuration and resubmit, or cancel the remainder.
func (s *session) failSubmit(message string) {
	s.lastErr = message
	s.state = domain.StatePresenting
}

func (s *session) cancel() error {
	switch s.state {
	case domain.StateDone, domain.StateCancelled:
		return domain.ErrSessionFinished
	case domain.StateSubmitting:
		return domain.ErrSessionBusy
	}
	s.state = domain.StateCancelled
	s.groups = nil
	return nil
}

func (s *session) view(f *format.Formatter) domain.SessionView {
	view := domain.SessionView{
		ID:         s.id,
		State:      s.state,
		GroupIndex: s.index,
		GroupCount: s.groupCount,
		Progress:   f.Progress(s.index, s.groupCount),
		LastError:  s.lastErr,
	}
	if len(s.closed) > 0 {
		view.ClosedGroups = append(view.ClosedGroups, s.closed...)
	}

	if s.state == domain.StatePresenting || s.state == domain.StateSubmitting {
		group := s.groups[s.index]
		view.TotalAmount = group.TotalAmount
		view.Current = &domain.GroupView{
			Client:        group.Client,
			EntryCount:    len(group.Entries),
			TotalAmount:   group.TotalAmount.StringFixed(2),
			TotalDisplay:  f.Amount(group.TotalAmount),
			MissingPrices: group.MissingPrices,
			Config:        s.config,
		}
	}
	return view
}
