package pos

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTerminal_Validation(t *testing.T) {
	bus := event.NewInMemoryEventBus(zap.NewNop())

	_, err := NewTerminal(TerminalConfig{}, TerminalDeps{Events: bus})
	assert.Error(t, err)

	_, err = NewTerminal(TerminalConfig{}, TerminalDeps{Catalog: &MockCatalogSource{}, Submitter: &MockSaleSubmitter{}})
	assert.Error(t, err)

	_, err = NewTerminal(TerminalConfig{
		PaymentMethods:       []pos.PaymentMethod{pos.PaymentMethodCash},
		DefaultPaymentMethod: pos.PaymentMethodCard,
	}, TerminalDeps{Catalog: &MockCatalogSource{}, Submitter: &MockSaleSubmitter{}, Events: bus})
	assert.ErrorIs(t, err, pos.ErrInvalidPaymentMethod)

	term, err := NewTerminal(TerminalConfig{}, TerminalDeps{Catalog: &MockCatalogSource{}, Submitter: &MockSaleSubmitter{}, Events: bus})
	require.NoError(t, err)
	defer term.Close()
	assert.Equal(t, pos.AllPaymentMethods(), term.PaymentMethods())
	assert.Equal(t, pos.PaymentMethodCash, term.PaymentMethod())
}

func TestTerminal_StartFailureIsNotified(t *testing.T) {
	source := &MockCatalogSource{}
	source.On("FetchCategories", mock.Anything).Return(nil, errors.New("connection refused"))
	source.On("FetchProducts", mock.Anything).Return(nil, errors.New("connection refused"))

	term, err := NewTerminal(TerminalConfig{}, TerminalDeps{
		Catalog:   source,
		Submitter: &MockSaleSubmitter{},
		Events:    event.NewInMemoryEventBus(zap.NewNop()),
	})
	require.NoError(t, err)
	defer term.Close()

	term.Start(context.Background())

	notes := term.Notifications.Active()
	require.Len(t, notes, 1)
	assert.Equal(t, NotificationError, notes[0].Level)
	assert.Equal(t, 0, term.Catalog.Len())
	assert.Nil(t, term.Status().CatalogLoadedAt)
}

func TestTerminal_SelectPaymentMethod(t *testing.T) {
	f := newFixture(t, 0)

	m, err := f.terminal.SelectPaymentMethod(" Card ")
	require.NoError(t, err)
	assert.Equal(t, pos.PaymentMethodCard, m)
	assert.Equal(t, pos.PaymentMethodCard, f.terminal.PaymentMethod())

	m, err = f.terminal.SelectPaymentMethod("cheque")
	assert.ErrorIs(t, err, pos.ErrInvalidPaymentMethod)
	assert.Equal(t, pos.PaymentMethodCard, m)
}

func TestTerminal_HandleKey(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	fillCart(t, f, "C3", "C3")

	res, err := f.terminal.HandleKey(ctx, "F2", "BODY", false)
	require.NoError(t, err)
	assert.Equal(t, KeyActionClearCart, res.Action)
	assert.True(t, res.NeedsConfirmation)
	assert.False(t, res.Performed)
	assert.Equal(t, 2, f.terminal.Cart.Snapshot().UnitCount)

	res, err = f.terminal.HandleKey(ctx, "F2", "INPUT", true)
	require.NoError(t, err)
	assert.Equal(t, KeyActionNone, res.Action)
	assert.Equal(t, 2, f.terminal.Cart.Snapshot().UnitCount)

	res, err = f.terminal.HandleKey(ctx, "f2", "DIV", true)
	require.NoError(t, err)
	assert.True(t, res.Performed)
	assert.True(t, f.terminal.Cart.Snapshot().IsEmpty())

	// clearing an empty cart is a no-op
	res, err = f.terminal.HandleKey(ctx, "F2", "DIV", true)
	require.NoError(t, err)
	assert.False(t, res.Performed)

	res, err = f.terminal.HandleKey(ctx, "F1", "BODY", false)
	require.NoError(t, err)
	assert.Equal(t, KeyActionFocusSearch, res.Action)
	assert.False(t, res.Performed)
}

func TestTerminal_SubscribeAndUnsubscribe(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	var seen []string
	sub := f.terminal.Subscribe(pos.EventTypeCartChanged, shared.EventHandlerFunc(func(_ context.Context, e shared.DomainEvent) error {
		seen = append(seen, e.(*pos.CartChangedEvent).SKU)
		return nil
	}))

	_, err := f.terminal.Cart.AddItem(ctx, "C3")
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()
	_, err = f.terminal.Cart.AddItem(ctx, "D4")
	require.NoError(t, err)

	assert.Equal(t, []string{"C3"}, seen)
}

func TestTerminal_Status(t *testing.T) {
	f := newFixture(t, 0)
	fillCart(t, f, "C3", "D4")

	st := f.terminal.Status()
	assert.False(t, st.Idle)
	assert.Equal(t, "idle", st.CheckoutState)
	assert.Equal(t, pos.PaymentMethodCash, st.PaymentMethod)
	assert.Equal(t, 2, st.CartUnits)
	assert.Equal(t, 4, st.CatalogProducts)
	require.NotNil(t, st.CatalogLoadedAt)
	assert.Equal(t, 0, st.Stats.Transactions)
}
