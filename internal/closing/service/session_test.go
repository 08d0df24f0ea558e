package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/closing/format"
	"github.com/sphera-erp/sphera/internal/config"
)

func testGroups(n int) []domain.ClosureGroup {
	groups := make([]domain.ClosureGroup, 0, n)
	for i := 0; i < n; i++ {
		groups = append(groups, domain.ClosureGroup{
			Client:      domain.ClientSummary{ID: snowflake.ID(i + 1), Name: string(rune('A' + i))},
			TotalAmount: decimal.RequireFromString("100.00"),
		})
	}
	return groups
}

func newTestSession(n int) *session {
	return newSession("sess-1", 7, testGroups(n), time.Now().UTC(), config.DefaultClosingConfig())
}

func TestSessionStartsPresentingFirstGroup(t *testing.T) {
	sess := newTestSession(2)
	assert.Equal(t, domain.StatePresenting, sess.state)
	assert.Equal(t, 0, sess.index)
	assert.Equal(t, domain.MissingPriceBlock, sess.config.MissingPriceBehavior)
	assert.Equal(t, domain.CloseWithoutInstallments, sess.config.CloseOption)
}

func TestSessionConfigureValidatesInput(t *testing.T) {
	policy := config.DefaultClosingConfig()
	first := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	t.Run("rejects unknown behavior", func(t *testing.T) {
		sess := newTestSession(1)
		err := sess.configure(domain.GroupConfig{MissingPriceBehavior: 9, CloseOption: domain.CloseWithoutInstallments}, policy)
		assert.ErrorIs(t, err, domain.ErrInvalidBehavior)
	})

	t.Run("rejects unknown close option", func(t *testing.T) {
		sess := newTestSession(1)
		err := sess.configure(domain.GroupConfig{CloseOption: "weekly"}, policy)
		assert.ErrorIs(t, err, domain.ErrInvalidCloseOption)
	})

	t.Run("installments require a count in range", func(t *testing.T) {
		sess := newTestSession(1)
		err := sess.configure(domain.GroupConfig{
			CloseOption:      domain.CloseWithInstallments,
			InstallmentCount: 1,
			FirstDueDate:     &first,
		}, policy)
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("installments require a first due date", func(t *testing.T) {
		sess := newTestSession(1)
		err := sess.configure(domain.GroupConfig{
			CloseOption:      domain.CloseWithInstallments,
			InstallmentCount: 3,
		}, policy)
		assert.ErrorIs(t, err, domain.ErrMissingFirstDueDate)
	})

	t.Run("policy cap lowers the installment ceiling", func(t *testing.T) {
		capped := policy
		capped.MaxInstallments = 4
		sess := newTestSession(1)
		err := sess.configure(domain.GroupConfig{
			CloseOption:      domain.CloseWithInstallments,
			InstallmentCount: 6,
			FirstDueDate:     &first,
		}, capped)
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("override due date is dropped for installment closures", func(t *testing.T) {
		sess := newTestSession(1)
		override := first.AddDate(0, 2, 0)
		err := sess.configure(domain.GroupConfig{
			CloseOption:      domain.CloseWithInstallments,
			InstallmentCount: 3,
			FirstDueDate:     &first,
			OverrideDueDate:  &override,
		}, policy)
		require.NoError(t, err)
		assert.Nil(t, sess.config.OverrideDueDate)
	})
}

func TestSessionSubmitLifecycle(t *testing.T) {
	policy := config.DefaultClosingConfig()
	sess := newTestSession(2)

	group, cfg, err := sess.beginSubmit()
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitting, sess.state)
	assert.Equal(t, sess.groups[0].Client.Name, group.Client.Name)
	assert.Equal(t, domain.CloseWithoutInstallments, cfg.CloseOption)

	t.Run("no second submission while one is in flight", func(t *testing.T) {
		_, _, err := sess.beginSubmit()
		assert.ErrorIs(t, err, domain.ErrSessionBusy)
	})

	t.Run("configure is refused while submitting", func(t *testing.T) {
		err := sess.configure(domain.GroupConfig{CloseOption: domain.CloseWithoutInstallments}, policy)
		assert.ErrorIs(t, err, domain.ErrSessionBusy)
	})

	t.Run("cancel is refused while submitting", func(t *testing.T) {
		assert.ErrorIs(t, sess.cancel(), domain.ErrSessionBusy)
	})

	sess.completeSubmit(domain.ClosedGroup{InvoiceID: "inv_1"}, policy)
	assert.Equal(t, domain.StatePresenting, sess.state)
	assert.Equal(t, 1, sess.index)
	require.Len(t, sess.closed, 1)

	_, _, err = sess.beginSubmit()
	require.NoError(t, err)
	sess.completeSubmit(domain.ClosedGroup{InvoiceID: "inv_2"}, policy)
	assert.Equal(t, domain.StateDone, sess.state)

	// Group payloads are released on completion; the view keeps its counts
	// and closed summaries.
	assert.Nil(t, sess.groups)
	view := sess.view(format.New("pt-BR", "BRL"))
	assert.Equal(t, 2, view.GroupCount)
	assert.Equal(t, "2 of 2", view.Progress)
	assert.Len(t, view.ClosedGroups, 2)

	t.Run("finished session refuses everything", func(t *testing.T) {
		_, _, err := sess.beginSubmit()
		assert.ErrorIs(t, err, domain.ErrSessionFinished)
		assert.ErrorIs(t, sess.cancel(), domain.ErrSessionFinished)
	})
}

func TestSessionFailureKeepsIndex(t *testing.T) {
	sess := newTestSession(2)

	_, _, err := sess.beginSubmit()
	require.NoError(t, err)
	sess.failSubmit("client has no open invoices")

	assert.Equal(t, domain.StatePresenting, sess.state)
	assert.Equal(t, 0, sess.index)
	assert.Equal(t, "client has no open invoices", sess.lastErr)
	assert.Empty(t, sess.closed)
}

func TestSessionConfigDoesNotLeakBetweenGroups(t *testing.T) {
	policy := config.DefaultClosingConfig()
	sess := newTestSession(2)
	first := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sess.configure(domain.GroupConfig{
		MissingPriceBehavior: domain.MissingPriceAllowManual,
		CloseOption:          domain.CloseWithInstallments,
		InstallmentCount:     6,
		FirstDueDate:         &first,
	}, policy))

	_, _, err := sess.beginSubmit()
	require.NoError(t, err)
	sess.completeSubmit(domain.ClosedGroup{InvoiceID: "inv_1"}, policy)

	assert.Equal(t, domain.MissingPriceBlock, sess.config.MissingPriceBehavior)
	assert.Equal(t, domain.CloseWithoutInstallments, sess.config.CloseOption)
	assert.Zero(t, sess.config.InstallmentCount)
	assert.Nil(t, sess.config.FirstDueDate)
	assert.Nil(t, sess.config.OverrideDueDate)
}

func TestSessionCancelDiscardsRemainder(t *testing.T) {
	policy := config.DefaultClosingConfig()
	sess := newTestSession(3)

	_, _, err := sess.beginSubmit()
	require.NoError(t, err)
	sess.completeSubmit(domain.ClosedGroup{InvoiceID: "inv_1"}, policy)

	require.NoError(t, sess.cancel())
	assert.Equal(t, domain.StateCancelled, sess.state)
	assert.Len(t, sess.closed, 1)
	assert.Nil(t, sess.groups)
}

func TestSessionViewProgress(t *testing.T) {
	sess := newTestSession(3)
	view := sess.view(format.New("pt-BR", "BRL"))

	assert.Equal(t, "1 of 3", view.Progress)
	assert.Equal(t, 3, view.GroupCount)
	require.NotNil(t, view.Current)
	assert.Equal(t, "100.00", view.Current.TotalAmount)
	assert.NotEmpty(t, view.Current.TotalDisplay)
}
